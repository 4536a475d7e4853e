package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	notificationdb "github.com/uts-dev/notification/internal/notification/db"
)

// ErrNotFound は通知が存在しないか、呼び出し元の所有物でない場合に返される。
// 他ユーザーの通知の存在を漏らさないため、両者を区別しない。
var ErrNotFound = errors.New("通知が見つかりません")

// StoredType は永続通知の種類を表す。
type StoredType string

const (
	// TypeOrgInvitation は組織への招待通知。
	TypeOrgInvitation StoredType = "ORG_INVITATION"
	// TypeOrgMemberJoined は組織への新規メンバー参加通知。
	TypeOrgMemberJoined StoredType = "ORG_MEMBER_JOINED"
	// TypeOrgRoleChanged は組織内でのロール変更通知。
	TypeOrgRoleChanged StoredType = "ORG_ROLE_CHANGED"
	// TypeReportCompleted はレポート生成完了通知。
	TypeReportCompleted StoredType = "REPORT_COMPLETED"
	// TypeReportFailed はレポート生成失敗通知。
	TypeReportFailed StoredType = "REPORT_FAILED"
	// TypeChatMention はチャットでのメンション通知。
	TypeChatMention StoredType = "CHAT_MENTION"
	// TypeSystemAnnouncement はシステムからのお知らせ通知。
	TypeSystemAnnouncement StoredType = "SYSTEM_ANNOUNCEMENT"
)

// Category は通知の分類。種類名のプレフィックスから決定論的に導出され、保存はされない。
type Category string

const (
	// CategoryOrganization は組織に関する通知の分類。
	CategoryOrganization Category = "ORGANIZATION"
	// CategoryUser はユーザー個人に関する通知の分類。
	CategoryUser Category = "USER"
	// CategorySystem はシステムに関する通知の分類。
	CategorySystem Category = "SYSTEM"
)

// Category は通知の種類から分類を導出する。
func (t StoredType) Category() Category {
	switch {
	case strings.HasPrefix(string(t), "ORG_"):
		return CategoryOrganization
	case strings.HasPrefix(string(t), "REPORT_"), strings.HasPrefix(string(t), "CHAT_"):
		return CategoryUser
	default:
		return CategorySystem
	}
}

// RealtimeGateway は通知のリアルタイム配信に必要な操作の抽象。
// 実体はrealtime.Gatewayだが、テストではフェイクに差し替える。
type RealtimeGateway interface {
	// DeliverToUser はユーザーの全セッションへ通知イベントを配信する。
	DeliverToUser(userID, title, message string, metadata map[string]any)
	// BroadcastAll は接続中の全セッションへ一斉配信する。
	BroadcastAll(title, message string, metadata map[string]any)
}

// StoredNotification は永続通知のAPIレスポンス表現。
type StoredNotification struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// UserID は通知先のユーザーID。
	UserID string `json:"userId"`
	// OrgID は通知のスコープとなる組織ID。無い場合は空文字列。
	OrgID string `json:"orgId,omitempty"`
	// Type は通知の種類。
	Type StoredType `json:"type"`
	// Category は種類から導出された分類。
	Category Category `json:"category"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Content は通知の本文。
	Content string `json:"content,omitempty"`
	// Metadata は通知に付随する任意のキー/値データ。
	Metadata map[string]any `json:"metadata"`
	// IsRead は既読状態。
	IsRead bool `json:"isRead"`
	// ReadAt は既読にした日時。未読の間はnil。
	ReadAt *time.Time `json:"readAt,omitempty"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"createdAt"`
}

// PagedNotifications はページネーション付きの通知一覧。
type PagedNotifications struct {
	// Items は通知の一覧（新しい順）。
	Items []StoredNotification `json:"items"`
	// Page は現在のページ番号（0始まり）。
	Page int `json:"page"`
	// Size は1ページあたりの件数。
	Size int `json:"size"`
	// Total は全件数。
	Total int `json:"total"`
	// TotalPages は総ページ数。
	TotalPages int `json:"totalPages"`
}

// CreateInput は永続通知の作成パラメータ。
type CreateInput struct {
	// UserID は通知先のユーザーID。必須。
	UserID string `json:"userId"`
	// OrgID は通知のスコープとなる組織ID。任意。
	OrgID string `json:"orgId,omitempty"`
	// Type は通知の種類。必須。
	Type StoredType `json:"type"`
	// Title は通知のタイトル。必須。
	Title string `json:"title"`
	// Content は通知の本文。任意。
	Content string `json:"content,omitempty"`
	// Metadata は通知に付随する任意のキー/値データ。
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Store は既読管理付きの永続通知ストア。
// リアルタイム配信の成否に依存しない、通知の正となる記録を持つ。
type Store struct {
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// realtime は作成時のベストエフォート配信に使うゲートウェイ。
	realtime RealtimeGateway
}

// NewStore は新しい永続通知ストアを生成する。
func NewStore(queries *notificationdb.Queries, realtime RealtimeGateway) *Store {
	return &Store{queries: queries, realtime: realtime}
}

// Create は通知を未読状態で永続化し、ベストエフォートでリアルタイム配信する。
// 配信はオンラインのクライアントが即座に描画するための最適化であり、
// 誰も接続していなくても作成は成功する。
func (s *Store) Create(ctx context.Context, input CreateInput) (StoredNotification, error) {
	if input.UserID == "" {
		return StoredNotification{}, fmt.Errorf("userIdは必須です")
	}
	if input.Type == "" {
		return StoredNotification{}, fmt.Errorf("typeは必須です")
	}
	if input.Title == "" {
		return StoredNotification{}, fmt.Errorf("titleは必須です")
	}

	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return StoredNotification{}, fmt.Errorf("メタデータのシリアライズに失敗: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	err = s.queries.CreateNotification(ctx, notificationdb.CreateNotificationParams{
		ID:        id,
		UserID:    input.UserID,
		OrgID:     toNullString(input.OrgID),
		Type:      string(input.Type),
		Title:     input.Title,
		Content:   toNullString(input.Content),
		Metadata:  string(metadataJSON),
		CreatedAt: now,
	})
	if err != nil {
		return StoredNotification{}, fmt.Errorf("通知の作成に失敗: %w", err)
	}
	log.Printf("[Store] 通知を作成しました: id=%s, user=%s, type=%s", id, input.UserID, input.Type)

	// リアルタイム配信はベストエフォート。失敗しても作成は成功扱い。
	pushMetadata := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		pushMetadata[k] = v
	}
	pushMetadata["notificationId"] = id
	pushMetadata["type"] = string(input.Type)
	s.realtime.DeliverToUser(input.UserID, input.Title, input.Content, pushMetadata)

	return StoredNotification{
		ID:        id,
		UserID:    input.UserID,
		OrgID:     input.OrgID,
		Type:      input.Type,
		Category:  input.Type.Category(),
		Title:     input.Title,
		Content:   input.Content,
		Metadata:  metadata,
		IsRead:    false,
		CreatedAt: now,
	}, nil
}

// List はユーザーの通知を新しい順にページネーション付きで返す。
func (s *Store) List(ctx context.Context, userID string, page, size int) (PagedNotifications, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}

	total, err := s.queries.CountNotificationsByUserID(ctx, userID)
	if err != nil {
		return PagedNotifications{}, fmt.Errorf("通知件数の取得に失敗: %w", err)
	}

	rows, err := s.queries.ListNotificationsByUserID(ctx, notificationdb.ListNotificationsByUserIDParams{
		UserID: userID,
		Limit:  int64(size),
		Offset: int64(page * size),
	})
	if err != nil {
		return PagedNotifications{}, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}

	totalPages := (int(total) + size - 1) / size
	return PagedNotifications{
		Items:      toStoredNotifications(rows),
		Page:       page,
		Size:       size,
		Total:      int(total),
		TotalPages: totalPages,
	}, nil
}

// ListUnread はユーザーの未読通知を新しい順に返す。
func (s *Store) ListUnread(ctx context.Context, userID string) ([]StoredNotification, error) {
	rows, err := s.queries.ListUnreadNotificationsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("未読通知一覧の取得に失敗: %w", err)
	}
	return toStoredNotifications(rows), nil
}

// UnreadCount はユーザーの未読通知件数を返す。
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.queries.CountUnreadNotificationsByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return int(count), nil
}

// MarkRead は通知を既読にする。冪等であり、既読済みの通知に対しても成功し、
// readAtは最初の既読日時のまま保持される。存在しないか所有者が異なる場合はErrNotFound。
func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) (StoredNotification, error) {
	affected, err := s.queries.MarkNotificationRead(ctx, notificationdb.MarkNotificationReadParams{
		ReadAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		ID:     notificationID,
		UserID: userID,
	})
	if err != nil {
		return StoredNotification{}, fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	if affected == 0 {
		return StoredNotification{}, ErrNotFound
	}

	row, err := s.queries.GetNotification(ctx, notificationdb.GetNotificationParams{
		ID:     notificationID,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredNotification{}, ErrNotFound
		}
		return StoredNotification{}, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return toStoredNotification(row), nil
}

// MarkAllRead はユーザーの未読通知をすべて既読にし、実際に遷移した件数を返す。
// 単一のUPDATE文で実行され、既読済みの通知には影響しない。
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	marked, err := s.queries.MarkAllNotificationsRead(ctx, notificationdb.MarkAllNotificationsReadParams{
		ReadAt: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		UserID: userID,
	})
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	return int(marked), nil
}

// Delete は通知を削除する。存在しないか所有者が異なる場合はErrNotFound。
func (s *Store) Delete(ctx context.Context, userID, notificationID string) error {
	affected, err := s.queries.DeleteNotification(ctx, notificationdb.DeleteNotificationParams{
		ID:     notificationID,
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("通知の削除に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	log.Printf("[Store] 通知を削除しました: id=%s", notificationID)
	return nil
}

// DeleteAll はユーザーの全通知を削除し、削除した件数を返す。
func (s *Store) DeleteAll(ctx context.Context, userID string) (int, error) {
	deleted, err := s.queries.DeleteAllNotificationsByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("全通知の削除に失敗: %w", err)
	}
	return int(deleted), nil
}

// NotifyInvitation は組織招待の通知を作成する。
func (s *Store) NotifyInvitation(ctx context.Context, userID, orgID, orgName, inviterEmail string) (StoredNotification, error) {
	return s.Create(ctx, CreateInput{
		UserID:   userID,
		OrgID:    orgID,
		Type:     TypeOrgInvitation,
		Title:    fmt.Sprintf("%s への招待", orgName),
		Content:  fmt.Sprintf("%s さんから %s に招待されました", inviterEmail, orgName),
		Metadata: map[string]any{"orgName": orgName, "inviterEmail": inviterEmail},
	})
}

// NotifyMemberJoined は新規メンバー参加の通知を作成する。
func (s *Store) NotifyMemberJoined(ctx context.Context, userID, orgID, orgName, memberEmail string) (StoredNotification, error) {
	return s.Create(ctx, CreateInput{
		UserID:   userID,
		OrgID:    orgID,
		Type:     TypeOrgMemberJoined,
		Title:    fmt.Sprintf("%s に新しいメンバー", orgName),
		Content:  fmt.Sprintf("%s さんが %s に参加しました", memberEmail, orgName),
		Metadata: map[string]any{"orgName": orgName, "memberEmail": memberEmail},
	})
}

// NotifyRoleChanged はロール変更の通知を作成する。
func (s *Store) NotifyRoleChanged(ctx context.Context, userID, orgID, orgName, newRole string) (StoredNotification, error) {
	return s.Create(ctx, CreateInput{
		UserID:   userID,
		OrgID:    orgID,
		Type:     TypeOrgRoleChanged,
		Title:    fmt.Sprintf("%s でのロールが更新されました", orgName),
		Content:  fmt.Sprintf("%s でのあなたのロールが %s に変更されました", orgName, newRole),
		Metadata: map[string]any{"orgName": orgName, "newRole": newRole},
	})
}

// NotifyReportCompleted はレポート生成完了の通知を作成する。
func (s *Store) NotifyReportCompleted(ctx context.Context, userID, orgID, reportID, reportName string) (StoredNotification, error) {
	return s.Create(ctx, CreateInput{
		UserID:   userID,
		OrgID:    orgID,
		Type:     TypeReportCompleted,
		Title:    "レポートが完成しました",
		Content:  fmt.Sprintf("レポート「%s」の生成が完了しました", reportName),
		Metadata: map[string]any{"reportId": reportID, "reportName": reportName},
	})
}

// NotifyReportFailed はレポート生成失敗の通知を作成する。
func (s *Store) NotifyReportFailed(ctx context.Context, userID, orgID, reportID, reportName, reason string) (StoredNotification, error) {
	return s.Create(ctx, CreateInput{
		UserID:   userID,
		OrgID:    orgID,
		Type:     TypeReportFailed,
		Title:    "レポートの生成に失敗しました",
		Content:  fmt.Sprintf("レポート「%s」の生成に失敗しました: %s", reportName, reason),
		Metadata: map[string]any{"reportId": reportID, "reportName": reportName, "error": reason},
	})
}

// MentionInput はチャットメンション通知のパラメータ。
type MentionInput struct {
	// MessageID はメンションを含むメッセージのID。
	MessageID string `json:"messageId"`
	// RoomID はメッセージが投稿されたルームのID。
	RoomID string `json:"roomId"`
	// RoomName はルームの表示名。
	RoomName string `json:"roomName"`
	// SenderID は送信者のユーザーID。
	SenderID string `json:"senderId"`
	// SenderName は送信者の表示名。
	SenderName string `json:"senderName"`
	// MessagePreview はメッセージの冒頭部分。
	MessagePreview string `json:"messagePreview"`
}

// NotifyMention はチャットメンションの通知を作成する。
func (s *Store) NotifyMention(ctx context.Context, userID, orgID string, input MentionInput) (StoredNotification, error) {
	return s.Create(ctx, CreateInput{
		UserID:  userID,
		OrgID:   orgID,
		Type:    TypeChatMention,
		Title:   fmt.Sprintf("%s さんがあなたをメンションしました", input.SenderName),
		Content: input.MessagePreview,
		Metadata: map[string]any{
			"messageId":  input.MessageID,
			"roomId":     input.RoomID,
			"roomName":   input.RoomName,
			"senderId":   input.SenderID,
			"senderName": input.SenderName,
		},
	})
}

// toNullString は空文字列をNULLとして扱うsql.NullStringに変換する。
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// toStoredNotification はDB行をAPIレスポンス表現に変換する。
func toStoredNotification(row notificationdb.Notification) StoredNotification {
	metadata := map[string]any{}
	if row.Metadata != "" {
		// 不正なJSONは空のメタデータとして扱う
		_ = json.Unmarshal([]byte(row.Metadata), &metadata)
	}

	n := StoredNotification{
		ID:        row.ID,
		UserID:    row.UserID,
		OrgID:     row.OrgID.String,
		Type:      StoredType(row.Type),
		Category:  StoredType(row.Type).Category(),
		Title:     row.Title,
		Content:   row.Content.String,
		Metadata:  metadata,
		IsRead:    row.IsRead != 0,
		CreatedAt: row.CreatedAt,
	}
	if row.ReadAt.Valid {
		readAt := row.ReadAt.Time
		n.ReadAt = &readAt
	}
	return n
}

// toStoredNotifications はDB行のスライスをAPIレスポンス表現のスライスに変換する。
func toStoredNotifications(rows []notificationdb.Notification) []StoredNotification {
	items := make([]StoredNotification, 0, len(rows))
	for _, row := range rows {
		items = append(items, toStoredNotification(row))
	}
	return items
}
