package presence

import (
	"sync"
	"time"
)

// sessionInfo はセッションIDに紐づくユーザーと組織の情報。
type sessionInfo struct {
	// userID はセッションを所有するユーザーのID。
	userID string
	// orgID はセッション登録時に指定された組織のID。
	orgID string
}

// Record はユーザーのプレゼンス情報のスナップショット。
type Record struct {
	// UserID は対象ユーザーのID。
	UserID string
	// OrgID はユーザーが現在紐づいている組織のID。最後に登録されたセッションの組織が勝つ。
	OrgID string
	// IsOnline はユーザーがオンラインかどうか。
	IsOnline bool
	// LastSeen は最後に接続または切断が発生した日時。
	LastSeen time.Time
	// SessionCount はユーザーのアクティブセッション数。
	SessionCount int
}

// ConnectResult はConnectの結果。
type ConnectResult struct {
	// IsFirstConnection はこの接続でユーザーがオフラインからオンラインに遷移したかどうか。
	IsFirstConnection bool
	// PreviousOrgID は組織の紐づけが変わった場合の以前の組織ID。変わっていなければ空文字列。
	PreviousOrgID string
}

// DisconnectResult はDisconnectの結果。
type DisconnectResult struct {
	// IsFullyOffline はこの切断でユーザーの全セッションが無くなったかどうか。
	IsFullyOffline bool
	// UserID はセッションを所有していたユーザーのID。未知のセッションの場合は空文字列。
	UserID string
	// OrgID はセッションが紐づいていた組織のID。
	OrgID string
}

// Registry はユーザーのオンライン状態を参照カウントで管理するプロセス内レジストリ。
// すべての操作は単一のミューテックスで直列化される。
// 同一ユーザーの「最初のセッションか／最後のセッションか」の判定が
// 並行なConnect/Disconnectと競合しないことを保証する。
type Registry struct {
	// mu は全マップを保護するミューテックス。
	mu sync.Mutex
	// userSessions はユーザーIDからアクティブセッションIDの集合への対応表。
	userSessions map[string]map[string]struct{}
	// sessions はセッションIDから所有者情報への対応表。
	sessions map[string]sessionInfo
	// userOrgs はユーザーIDから現在の組織IDへの対応表。
	userOrgs map[string]string
	// lastSeen はユーザーIDから最終接続/切断日時への対応表。
	lastSeen map[string]time.Time
}

// NewRegistry は新しいプレゼンスレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{
		userSessions: make(map[string]map[string]struct{}),
		sessions:     make(map[string]sessionInfo),
		userOrgs:     make(map[string]string),
		lastSeen:     make(map[string]time.Time),
	}
}

// Connect はユーザーのセッションを登録する。
// このセッションがユーザーの最初のアクティブセッションである場合、
// IsFirstConnection = true を返す。組織の紐づけが以前と異なる場合、
// PreviousOrgID に以前の組織IDを設定する（呼び出し側が古いルームから退出するため）。
func (r *Registry) Connect(userID, orgID, sessionID string) ConnectResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasOffline := len(r.userSessions[userID]) == 0
	previousOrgID := r.userOrgs[userID]

	sessions, ok := r.userSessions[userID]
	if !ok {
		sessions = make(map[string]struct{})
		r.userSessions[userID] = sessions
	}
	sessions[sessionID] = struct{}{}

	r.sessions[sessionID] = sessionInfo{userID: userID, orgID: orgID}
	// 最後に登録されたセッションの組織が勝つ
	r.userOrgs[userID] = orgID
	r.lastSeen[userID] = time.Now().UTC()

	result := ConnectResult{IsFirstConnection: wasOffline}
	if previousOrgID != "" && previousOrgID != orgID {
		result.PreviousOrgID = previousOrgID
	}
	return result
}

// Disconnect はセッションを登録解除する。
// このセッションがユーザーの最後のアクティブセッションだった場合、
// IsFullyOffline = true を返す。未知のセッションIDは何もせず
// IsFullyOffline = false を返す。
func (r *Registry) Disconnect(sessionID string) DisconnectResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sessions[sessionID]
	if !ok {
		return DisconnectResult{}
	}
	delete(r.sessions, sessionID)

	result := DisconnectResult{UserID: info.userID, OrgID: info.orgID}

	sessions := r.userSessions[info.userID]
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.userSessions, info.userID)
		r.lastSeen[info.userID] = time.Now().UTC()
		result.IsFullyOffline = true
	}
	return result
}

// IsOnline はユーザーがオンライン（アクティブセッションが1つ以上）かどうかを返す。
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userSessions[userID]) > 0
}

// OnlineUsersInOrg は指定された組織に紐づくオンラインユーザーのIDを返す。
// 順序は不定。最後の接続が別組織だったユーザーは含まれない。
func (r *Registry) OnlineUsersInOrg(orgID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0)
	for userID, userOrgID := range r.userOrgs {
		if userOrgID == orgID && len(r.userSessions[userID]) > 0 {
			users = append(users, userID)
		}
	}
	return users
}

// OnlineStatus は複数ユーザーのオンライン状態を一括で返す。
func (r *Registry) OnlineStatus(userIDs []string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		statuses[userID] = len(r.userSessions[userID]) > 0
	}
	return statuses
}

// Get はユーザーのプレゼンス情報を返す。
// 一度も接続したことがないユーザーの場合は ok = false を返す。
func (r *Registry) Get(userID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orgID, ok := r.userOrgs[userID]
	if !ok {
		return Record{}, false
	}

	return Record{
		UserID:       userID,
		OrgID:        orgID,
		IsOnline:     len(r.userSessions[userID]) > 0,
		LastSeen:     r.lastSeen[userID],
		SessionCount: len(r.userSessions[userID]),
	}, true
}

// OnlineUserCount はオンラインユーザーの総数を返す。
func (r *Registry) OnlineUserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userSessions)
}

// SessionCount は全ユーザーのアクティブセッションの総数を返す。
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
