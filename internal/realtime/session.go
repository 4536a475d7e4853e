package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1回の書き込みに許容する最大時間。
	writeWait = 10 * time.Second
	// pongWait はPongの応答を待つ最大時間。これを超えたセッションは切断される。
	pongWait = 60 * time.Second
	// pingPeriod はPingの送信間隔。pongWaitより短くなければならない。
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize はクライアントから受信するメッセージの最大バイト数。
	maxMessageSize = 4096
	// sendBufferSize はセッションごとの送信バッファのサイズ。
	// バッファが一杯のセッションへの配信は破棄される（ベストエフォート）。
	sendBufferSize = 32
)

// Session は1つのWebSocket接続を表す。
// 接続直後は未登録状態であり、registerイベントを受信して初めて
// ユーザーに紐づいた配信対象となる。
type Session struct {
	// ID はセッションの一意識別子（UUID）。
	ID string
	// conn は下位のWebSocket接続。テストではnilになる。
	conn *websocket.Conn
	// send は書き込み待ちメッセージのバッファ付きチャネル。
	send chan []byte
	// mu はclosedフラグとsendチャネルのクローズを保護するミューテックス。
	mu sync.Mutex
	// closed はsendチャネルがクローズ済みかどうか。
	closed bool
	// registered はregisterイベントの処理が完了しているかどうか。
	registered bool
	// userID は登録済みユーザーのID。未登録の間は空文字列。
	userID string
	// orgID は登録時に指定された組織のID。
	orgID string
}

// newSession は新しい未登録セッションを生成する。
func newSession(id string, conn *websocket.Conn) *Session {
	return &Session{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// enqueue はセッションの送信バッファにメッセージを積む。
// バッファが一杯、またはセッションがクローズ済みの場合はメッセージを破棄してfalseを返す。
func (s *Session) enqueue(raw []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- raw:
		return true
	default:
		return false
	}
}

// close はsendチャネルをクローズし、以降のenqueueを無効化する。
// 2回以上呼ばれても安全。
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// writePump はsendチャネルのメッセージをWebSocket接続へ書き込み続ける。
// セッションごとに1つのgoroutineとして動作する。
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Printf("[Realtime] セッション %s への書き込みに失敗: %v", s.ID, err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump はWebSocket接続からメッセージを読み込み、ゲートウェイに渡し続ける。
// 接続が切れた時点でセッションをクローズする。
func (s *Session) readPump(g *Gateway) {
	defer g.closeSession(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Realtime] セッション %s の読み込みエラー: %v", s.ID, err)
			}
			return
		}
		g.handleMessage(s, raw)
	}
}
