package realtime

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/uts-dev/notification/internal/presence"
	"github.com/uts-dev/notification/pkg/event"
)

// userRoom はユーザー単位の配信ルーム名を返す。
func userRoom(userID string) string {
	return "user:" + userID
}

// orgRoom は組織単位の配信ルーム名を返す。
func orgRoom(orgID string) string {
	return "org:" + orgID
}

// Gateway はWebSocketチャネルの所有者であり、チャネルへの送信を行う唯一のコンポーネント。
// セッションとルームの対応を管理し、プレゼンスレジストリへの反映を行う。
type Gateway struct {
	// presence はオンライン状態の参照カウントレジストリ。
	presence *presence.Registry
	// upgrader はHTTP接続をWebSocketにアップグレードする。
	upgrader websocket.Upgrader

	// mu はsessionsとroomsを保護するミューテックス。
	mu sync.RWMutex
	// sessions は登録状態を問わず接続中の全セッションの集合。
	sessions map[*Session]struct{}
	// rooms はルーム名から参加セッションの集合への対応表。
	rooms map[string]map[*Session]struct{}
}

// NewGateway は新しいリアルタイム配信ゲートウェイを生成する。
func NewGateway(reg *presence.Registry) *Gateway {
	return &Gateway{
		presence: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// オリジン検証はCORSミドルウェアと同様にゲートウェイ前段で行う
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
	}
}

// HandleWebSocket はWebSocket接続を受け付けるGinハンドラを返す。
func (g *Gateway) HandleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[Realtime] WebSocketアップグレードに失敗: %v", err)
			return
		}

		s := newSession(uuid.New().String(), conn)
		g.addSession(s)
		log.Printf("[Realtime] セッション %s が接続しました", s.ID)

		go s.writePump()
		s.readPump(g)
	}
}

// addSession は接続済みセッションを管理対象に加える。
// この時点ではプレゼンスには反映されない（未登録のため）。
func (g *Gateway) addSession(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[s] = struct{}{}
}

// closeSession はセッションを全ルームから退出させ、プレゼンスに切断を反映する。
// ユーザーの最後のセッションだった場合、組織ルームへuser:offlineを配信する。
func (g *Gateway) closeSession(s *Session) {
	g.mu.Lock()
	if _, ok := g.sessions[s]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.sessions, s)
	for room, members := range g.rooms {
		delete(members, s)
		if len(members) == 0 {
			delete(g.rooms, room)
		}
	}
	g.mu.Unlock()
	s.close()

	result := g.presence.Disconnect(s.ID)
	if result.IsFullyOffline {
		log.Printf("[Realtime] ユーザー %s がオフラインになりました", result.UserID)
		g.emitToRoom(orgRoom(result.OrgID), event.NameUserOffline, event.PresencePayload{
			UserID:    result.UserID,
			OrgID:     result.OrgID,
			Timestamp: time.Now().UTC(),
		})
	}
	log.Printf("[Realtime] セッション %s が切断しました", s.ID)
}

// joinRoom はセッションをルームに参加させる。
func (g *Gateway) joinRoom(s *Session, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		g.rooms[room] = members
	}
	members[s] = struct{}{}
}

// leaveRoom はセッションをルームから退出させる。
func (g *Gateway) leaveRoom(s *Session, room string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(g.rooms, room)
	}
}

// handleMessage はクライアントから受信した生のメッセージを処理する。
// 不正なメッセージはそのセッションへのエラー応答のみで済ませ、他に影響を与えない。
func (g *Gateway) handleMessage(s *Session, raw []byte) {
	env, err := event.Unmarshal(raw)
	if err != nil {
		g.emitToSession(s, event.NameError, event.ErrorPayload{Message: "メッセージ形式が不正です"})
		return
	}

	switch env.Event {
	case event.NameRegister:
		g.handleRegister(s, env)
	case event.NameUnregister:
		g.handleUnregister(s, env)
	case event.NameGetOnlineUsers:
		g.handleGetOnlineUsers(s, env)
	case event.NameGetUsersStatus:
		g.handleGetUsersStatus(s, env)
	default:
		g.emitToSession(s, event.NameError, event.ErrorPayload{Message: "未知のイベントです: " + string(env.Event)})
	}
}

// handleRegister は購読登録イベントを処理する。
// ユーザールームへの参加、プレゼンスへの反映、組織ルームへの参加を行い、
// ユーザーの最初のセッションであれば組織ルームへuser:onlineを配信する。
func (g *Gateway) handleRegister(s *Session, env *event.Envelope) {
	payload, err := event.DecodeData[event.RegisterPayload](env)
	if err != nil || payload.UserID == "" {
		log.Printf("[Realtime] セッション %s がuserIdなしで登録を試みました", s.ID)
		g.emitToSession(s, event.NameError, event.ErrorPayload{Message: "userIdは必須です"})
		return
	}

	g.mu.Lock()
	s.registered = true
	s.userID = payload.UserID
	s.orgID = payload.OrgID
	g.mu.Unlock()

	g.joinRoom(s, userRoom(payload.UserID))

	if payload.OrgID != "" {
		result := g.presence.Connect(payload.UserID, payload.OrgID, s.ID)
		if result.PreviousOrgID != "" {
			g.leaveRoom(s, orgRoom(result.PreviousOrgID))
		}
		g.joinRoom(s, orgRoom(payload.OrgID))

		if result.IsFirstConnection {
			log.Printf("[Realtime] ユーザー %s がオンラインになりました (org: %s)", payload.UserID, payload.OrgID)
			g.emitToRoom(orgRoom(payload.OrgID), event.NameUserOnline, event.PresencePayload{
				UserID:    payload.UserID,
				OrgID:     payload.OrgID,
				Timestamp: time.Now().UTC(),
			})
		}
	}

	log.Printf("[Realtime] セッション %s がユーザー %s として登録しました", s.ID, payload.UserID)
	g.emitToSession(s, event.NameRegistered, event.RegisteredPayload{
		Message: "通知の購読登録が完了しました",
		UserID:  payload.UserID,
		OrgID:   payload.OrgID,
	})
}

// handleUnregister は購読解除イベントを処理する。
// トランスポートは維持したまま、登録時と逆の手順でルーム退出とプレゼンス切断を行う。
func (g *Gateway) handleUnregister(s *Session, env *event.Envelope) {
	payload, err := event.DecodeData[event.UnregisterPayload](env)
	if err != nil {
		g.emitToSession(s, event.NameError, event.ErrorPayload{Message: "メッセージ形式が不正です"})
		return
	}

	g.leaveRoom(s, userRoom(payload.UserID))

	g.mu.Lock()
	orgID := s.orgID
	s.registered = false
	s.userID = ""
	s.orgID = ""
	g.mu.Unlock()

	if orgID != "" {
		g.leaveRoom(s, orgRoom(orgID))
	}

	result := g.presence.Disconnect(s.ID)
	if result.IsFullyOffline {
		g.emitToRoom(orgRoom(result.OrgID), event.NameUserOffline, event.PresencePayload{
			UserID:    result.UserID,
			OrgID:     result.OrgID,
			Timestamp: time.Now().UTC(),
		})
	}

	log.Printf("[Realtime] セッション %s がユーザー %s の購読を解除しました", s.ID, payload.UserID)
	g.emitToSession(s, event.NameUnregistered, event.UnregisteredPayload{
		Message: "購読解除が完了しました",
		UserID:  payload.UserID,
	})
}

// handleGetOnlineUsers は組織内オンラインユーザー一覧の要求を処理する。
// 応答は要求を送信したセッションにのみ返す。
func (g *Gateway) handleGetOnlineUsers(s *Session, env *event.Envelope) {
	payload, err := event.DecodeData[event.GetOnlineUsersPayload](env)
	if err != nil || payload.OrgID == "" {
		g.emitToSession(s, event.NameError, event.ErrorPayload{Message: "orgIdは必須です"})
		return
	}

	g.emitToSession(s, event.NameOnlineUsersResponse, event.OnlineUsersResponsePayload{
		OrgID:     payload.OrgID,
		Users:     g.presence.OnlineUsersInOrg(payload.OrgID),
		Timestamp: time.Now().UTC(),
	})
}

// handleGetUsersStatus は複数ユーザーのオンライン状態の要求を処理する。
func (g *Gateway) handleGetUsersStatus(s *Session, env *event.Envelope) {
	payload, err := event.DecodeData[event.GetUsersStatusPayload](env)
	if err != nil {
		g.emitToSession(s, event.NameError, event.ErrorPayload{Message: "メッセージ形式が不正です"})
		return
	}

	g.emitToSession(s, event.NameUsersStatusResponse, event.UsersStatusResponsePayload{
		Statuses:  g.presence.OnlineStatus(payload.UserIDs),
		Timestamp: time.Now().UTC(),
	})
}

// emitToSession は単一セッションへイベントを送信する。
func (g *Gateway) emitToSession(s *Session, name event.Name, payload any) {
	raw, err := event.Marshal(name, payload)
	if err != nil {
		log.Printf("[Realtime] イベントのシリアライズに失敗: %v", err)
		return
	}
	if !s.enqueue(raw) {
		log.Printf("[Realtime] セッション %s の送信バッファが一杯のため %s を破棄しました", s.ID, name)
	}
}

// emitToRoom はルームに参加している全セッションへイベントを送信する。
// ルームが存在しない（参加者ゼロ）場合は何もしない。
func (g *Gateway) emitToRoom(room string, name event.Name, payload any) {
	raw, err := event.Marshal(name, payload)
	if err != nil {
		log.Printf("[Realtime] イベントのシリアライズに失敗: %v", err)
		return
	}

	g.mu.RLock()
	members := make([]*Session, 0, len(g.rooms[room]))
	for s := range g.rooms[room] {
		members = append(members, s)
	}
	g.mu.RUnlock()

	for _, s := range members {
		if !s.enqueue(raw) {
			log.Printf("[Realtime] セッション %s の送信バッファが一杯のため %s を破棄しました", s.ID, name)
		}
	}
}

// DeliverToUser はユーザーの全セッションへ通知イベントを配信する。
// 配信ごとにIDとタイムスタンプを生成する。アクティブセッションが無い場合は
// 何も起きず、エラーにもならない（永続化は通知ストアの責務）。
func (g *Gateway) DeliverToUser(userID, title, message string, metadata map[string]any) {
	g.emitToRoom(userRoom(userID), event.NameNotification, event.NotificationPayload{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})
	log.Printf("[Realtime] ユーザー %s へ通知を配信しました", userID)
}

// BroadcastAll は登録状態を問わず接続中の全セッションへ一斉配信する。
func (g *Gateway) BroadcastAll(title, message string, metadata map[string]any) {
	raw, err := event.Marshal(event.NameBroadcast, event.BroadcastPayload{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[Realtime] イベントのシリアライズに失敗: %v", err)
		return
	}

	g.mu.RLock()
	sessions := make([]*Session, 0, len(g.sessions))
	for s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.RUnlock()

	for _, s := range sessions {
		if !s.enqueue(raw) {
			log.Printf("[Realtime] セッション %s の送信バッファが一杯のためbroadcastを破棄しました", s.ID)
		}
	}
	log.Printf("[Realtime] %d セッションへ一斉配信しました", len(sessions))
}

// OnlineUsersInOrg は組織内のオンラインユーザーIDを返す。
func (g *Gateway) OnlineUsersInOrg(orgID string) []string {
	return g.presence.OnlineUsersInOrg(orgID)
}

// UsersStatus は複数ユーザーのオンライン状態を一括で返す。
func (g *Gateway) UsersStatus(userIDs []string) map[string]bool {
	return g.presence.OnlineStatus(userIDs)
}

// IsOnline はユーザーがオンラインかどうかを返す。
func (g *Gateway) IsOnline(userID string) bool {
	return g.presence.IsOnline(userID)
}

// Stats は接続統計を返す。
// activeUsersはオンラインユーザー数、totalConnectionsは登録状態を問わない接続数。
func (g *Gateway) Stats() (activeUsers, totalConnections int) {
	g.mu.RLock()
	totalConnections = len(g.sessions)
	g.mu.RUnlock()
	return g.presence.OnlineUserCount(), totalConnections
}
