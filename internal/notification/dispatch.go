package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/uts-dev/notification/internal/mail"
)

// mailSendTimeout はメール送信1件あたりの最大待ち時間。
const mailSendTimeout = 10 * time.Second

// DispatchType は即時配信のチャネル指定。
type DispatchType string

const (
	// DispatchEmail はメールチャネルのみで配信する。
	DispatchEmail DispatchType = "EMAIL"
	// DispatchInApp はアプリ内（リアルタイム）チャネルのみで配信する。
	DispatchInApp DispatchType = "IN_APP"
	// DispatchBoth は両チャネルで独立に配信する。
	DispatchBoth DispatchType = "BOTH"
)

// EmailPayload はメールチャネルの配信内容。
type EmailPayload struct {
	// To は宛先メールアドレスの一覧。
	To []string `json:"to"`
	// Subject はメールの件名。
	Subject string `json:"subject"`
	// Text はプレーンテキスト本文。
	Text string `json:"text,omitempty"`
	// HTML はHTML本文。
	HTML string `json:"html,omitempty"`
}

// InAppPayload はアプリ内チャネルの配信内容。
type InAppPayload struct {
	// UserID は配信先のユーザーID。
	UserID string `json:"userId"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知の本文。
	Message string `json:"message"`
	// Metadata は通知に付随する任意のキー/値データ。
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DispatchRequest は即時配信のリクエスト。
type DispatchRequest struct {
	// Type は配信チャネルの指定。
	Type DispatchType `json:"type"`
	// Email はメールチャネルの内容。Type がEMAILまたはBOTHの場合必須。
	Email *EmailPayload `json:"email,omitempty"`
	// InApp はアプリ内チャネルの内容。Type がIN_APPまたはBOTHの場合必須。
	InApp *InAppPayload `json:"inApp,omitempty"`
	// ScheduledAt は予約配信日時。受理されるが現時点では即時配信される。
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	// ExpiresAt は有効期限。受理されるが現時点では評価されない。
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// DispatchResult は即時配信の結果。
type DispatchResult struct {
	// ID はこの配信試行の追跡用識別子。
	ID string `json:"id"`
	// Status は配信の成否。successまたはfailed。
	Status string `json:"status"`
	// Message は結果の説明。
	Message string `json:"message"`
	// Timestamp は配信処理が完了した日時。
	Timestamp time.Time `json:"timestamp"`
	// Errors は失敗したチャネルごとのエラーメッセージ。
	Errors []string `json:"errors,omitempty"`
}

// ValidationError はリクエストの検証エラー。HTTP層では400に対応付けられる。
type ValidationError struct {
	// Reason は検証に失敗した理由。
	Reason string
}

// Error はerrorインターフェースの実装。
func (e *ValidationError) Error() string {
	return e.Reason
}

// Dispatcher はエフェメラルなマルチチャネル即時配信を行う。
// 配信結果はどこにも永続化されず、呼び出し元への戻り値がすべてである。
type Dispatcher struct {
	// sender はメールチャネルの送信手段。
	sender mail.Sender
	// realtime はアプリ内チャネルの配信先ゲートウェイ。
	realtime RealtimeGateway
}

// NewDispatcher は新しい即時配信ディスパッチャーを生成する。
func NewDispatcher(sender mail.Sender, realtime RealtimeGateway) *Dispatcher {
	return &Dispatcher{sender: sender, realtime: realtime}
}

// validate はリクエストの構造を検証する。失敗した場合は配信を一切試行しない。
func (d *Dispatcher) validate(req DispatchRequest) error {
	switch req.Type {
	case DispatchEmail:
		if req.Email == nil {
			return &ValidationError{Reason: "EMAILタイプにはemailペイロードが必要です"}
		}
	case DispatchInApp:
		if req.InApp == nil {
			return &ValidationError{Reason: "IN_APPタイプにはinAppペイロードが必要です"}
		}
	case DispatchBoth:
		if req.Email == nil || req.InApp == nil {
			return &ValidationError{Reason: "BOTHタイプにはemailとinAppの両方のペイロードが必要です"}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("不正な通知タイプです: %s", req.Type)}
	}

	if req.Email != nil {
		if len(req.Email.To) == 0 {
			return &ValidationError{Reason: "メールの宛先が指定されていません"}
		}
		if req.Email.Subject == "" {
			return &ValidationError{Reason: "メールの件名が指定されていません"}
		}
	}
	if req.InApp != nil {
		if req.InApp.UserID == "" {
			return &ValidationError{Reason: "アプリ内通知のuserIdが指定されていません"}
		}
		if req.InApp.Title == "" {
			return &ValidationError{Reason: "アプリ内通知のtitleが指定されていません"}
		}
	}
	return nil
}

// Send はリクエストを検証し、指定チャネルへ配信する。
// BOTHの場合は両チャネルを独立に試行し、片方の失敗がもう片方を妨げない。
// 検証エラーの場合はValidationErrorを返し、それ以外の失敗は結果のStatusで表現される。
func (d *Dispatcher) Send(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	if err := d.validate(req); err != nil {
		return DispatchResult{}, err
	}

	id := "notif-" + uuid.New().String()
	var errs []string

	if req.Type == DispatchEmail || req.Type == DispatchBoth {
		if err := d.sendEmail(ctx, *req.Email); err != nil {
			log.Printf("[Dispatcher] メール配信に失敗しました: id=%s, %v", id, err)
			errs = append(errs, fmt.Sprintf("email: %v", err))
		}
	}
	if req.Type == DispatchInApp || req.Type == DispatchBoth {
		d.realtime.DeliverToUser(req.InApp.UserID, req.InApp.Title, req.InApp.Message, req.InApp.Metadata)
	}

	result := DispatchResult{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Errors:    errs,
	}
	if len(errs) > 0 {
		result.Status = "failed"
		result.Message = "一部のチャネルへの配信に失敗しました"
	} else {
		result.Status = "success"
		result.Message = "通知を配信しました"
	}
	return result, nil
}

// SendBulk は複数のリクエストを入力順に処理する。
// 各要素は独立しており、検証エラーを含むあらゆる失敗は該当要素の結果に閉じる。
func (d *Dispatcher) SendBulk(ctx context.Context, reqs []DispatchRequest) []DispatchResult {
	results := make([]DispatchResult, 0, len(reqs))
	for _, req := range reqs {
		result, err := d.Send(ctx, req)
		if err != nil {
			results = append(results, DispatchResult{
				ID:        "notif-" + uuid.New().String(),
				Status:    "failed",
				Message:   err.Error(),
				Timestamp: time.Now().UTC(),
				Errors:    []string{err.Error()},
			})
			continue
		}
		results = append(results, result)
	}
	return results
}

// BroadcastInput は一斉配信のリクエスト。
type BroadcastInput struct {
	// Title は通知のタイトル。必須。
	Title string `json:"title"`
	// Message は通知の本文。
	Message string `json:"message"`
	// Metadata は通知に付随する任意のキー/値データ。
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Broadcast は接続中の全セッションへアプリ内通知を一斉配信する。
func (d *Dispatcher) Broadcast(input BroadcastInput) (DispatchResult, error) {
	if input.Title == "" {
		return DispatchResult{}, &ValidationError{Reason: "一斉配信のtitleが指定されていません"}
	}
	d.realtime.BroadcastAll(input.Title, input.Message, input.Metadata)
	return DispatchResult{
		ID:        "notif-" + uuid.New().String(),
		Status:    "success",
		Message:   "一斉配信を実行しました",
		Timestamp: time.Now().UTC(),
	}, nil
}

// sendEmail はタイムアウト付きコンテキストでメール1通を送信する。
func (d *Dispatcher) sendEmail(ctx context.Context, payload EmailPayload) error {
	ctx, cancel := context.WithTimeout(ctx, mailSendTimeout)
	defer cancel()

	return d.sender.Send(ctx, mail.Message{
		To:      payload.To,
		Subject: payload.Subject,
		Text:    payload.Text,
		HTML:    payload.HTML,
	})
}
