package event

import (
	"encoding/json"
	"time"
)

// Name はWebSocketチャネル上でやり取りされるイベントの名前を表す。
type Name string

const (
	// NameRegister はクライアントからの通知購読登録イベント。
	NameRegister Name = "register"
	// NameRegistered は購読登録成功の応答イベント。
	NameRegistered Name = "registered"
	// NameUnregister はクライアントからの購読解除イベント。
	NameUnregister Name = "unregister"
	// NameUnregistered は購読解除成功の応答イベント。
	NameUnregistered Name = "unregistered"
	// NameError はセッション単位のエラー応答イベント。
	NameError Name = "error"

	// NameUserOnline はユーザーがオンラインになったことを組織ルームへ通知するイベント。
	NameUserOnline Name = "user:online"
	// NameUserOffline はユーザーがオフラインになったことを組織ルームへ通知するイベント。
	NameUserOffline Name = "user:offline"

	// NameNotification はユーザールームへの通知配信イベント。
	NameNotification Name = "notification"
	// NameBroadcast は全セッションへの一斉配信イベント。
	NameBroadcast Name = "broadcast"

	// NameGetOnlineUsers は組織内のオンラインユーザー一覧を要求するイベント。
	NameGetOnlineUsers Name = "get_online_users"
	// NameOnlineUsersResponse はオンラインユーザー一覧の応答イベント。
	NameOnlineUsersResponse Name = "online_users_response"
	// NameGetUsersStatus は複数ユーザーのオンライン状態を要求するイベント。
	NameGetUsersStatus Name = "get_users_status"
	// NameUsersStatusResponse はオンライン状態の応答イベント。
	NameUsersStatusResponse Name = "users_status_response"
)

// Envelope はWebSocketチャネル上の全イベントが共有する外枠。
// Dataの中身はEventの値ごとに異なる。
type Envelope struct {
	// Event はイベントの名前。
	Event Name `json:"event"`
	// Data はイベント固有のペイロード（JSON形式）。
	Data json.RawMessage `json:"data,omitempty"`
}

// RegisterPayload は購読登録イベントのペイロード。
type RegisterPayload struct {
	// UserID は登録するユーザーのID。必須。
	UserID string `json:"userId"`
	// OrgID はユーザーが所属する組織のID。省略可。
	OrgID string `json:"orgId,omitempty"`
}

// RegisteredPayload は購読登録成功応答のペイロード。
type RegisteredPayload struct {
	// Message は登録結果のメッセージ。
	Message string `json:"message"`
	// UserID は登録されたユーザーのID。
	UserID string `json:"userId"`
	// OrgID は登録された組織のID。
	OrgID string `json:"orgId,omitempty"`
}

// UnregisterPayload は購読解除イベントのペイロード。
type UnregisterPayload struct {
	// UserID は解除するユーザーのID。
	UserID string `json:"userId"`
}

// UnregisteredPayload は購読解除成功応答のペイロード。
type UnregisteredPayload struct {
	// Message は解除結果のメッセージ。
	Message string `json:"message"`
	// UserID は解除されたユーザーのID。
	UserID string `json:"userId"`
}

// ErrorPayload はセッション単位のエラー応答のペイロード。
type ErrorPayload struct {
	// Message はエラーの内容。
	Message string `json:"message"`
}

// PresencePayload はuser:online / user:offlineイベントのペイロード。
type PresencePayload struct {
	// UserID は状態が変化したユーザーのID。
	UserID string `json:"userId"`
	// OrgID はユーザーの所属組織のID。
	OrgID string `json:"orgId"`
	// Timestamp は状態が変化した日時。
	Timestamp time.Time `json:"timestamp"`
}

// NotificationPayload はユーザールームへの通知配信のペイロード。
type NotificationPayload struct {
	// ID は配信ごとに生成される一意識別子（UUID）。
	ID string `json:"id"`
	// UserID は通知先のユーザーID。
	UserID string `json:"userId"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Metadata は通知に付随する任意のキー/値データ。
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp は配信日時。
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastPayload は全セッションへの一斉配信のペイロード。
type BroadcastPayload struct {
	// ID は配信ごとに生成される一意識別子（UUID）。
	ID string `json:"id"`
	// Title は配信のタイトル。
	Title string `json:"title"`
	// Message は配信メッセージ。
	Message string `json:"message"`
	// Metadata は配信に付随する任意のキー/値データ。
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp は配信日時。
	Timestamp time.Time `json:"timestamp"`
}

// GetOnlineUsersPayload はオンラインユーザー一覧要求のペイロード。
type GetOnlineUsersPayload struct {
	// OrgID は対象の組織ID。
	OrgID string `json:"orgId"`
}

// OnlineUsersResponsePayload はオンラインユーザー一覧応答のペイロード。
type OnlineUsersResponsePayload struct {
	// OrgID は対象の組織ID。
	OrgID string `json:"orgId"`
	// Users はオンラインのユーザーIDの一覧。順序は不定。
	Users []string `json:"users"`
	// Timestamp は応答日時。
	Timestamp time.Time `json:"timestamp"`
}

// GetUsersStatusPayload はオンライン状態一括要求のペイロード。
type GetUsersStatusPayload struct {
	// UserIDs は状態を確認するユーザーIDの一覧。
	UserIDs []string `json:"userIds"`
}

// UsersStatusResponsePayload はオンライン状態一括応答のペイロード。
type UsersStatusResponsePayload struct {
	// Statuses はユーザーIDからオンライン状態への対応表。
	Statuses map[string]bool `json:"statuses"`
	// Timestamp は応答日時。
	Timestamp time.Time `json:"timestamp"`
}
