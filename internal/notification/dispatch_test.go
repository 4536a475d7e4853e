package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/uts-dev/notification/internal/mail"
)

// mockSender はテスト用のメール送信実装。送信内容を記録し、指定されたエラーを返す。
type mockSender struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *mockSender) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockSender) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

// TestDispatcherValidation はリクエスト検証のテスト。
// 検証に失敗した場合はどのチャネルへも配信されない。
func TestDispatcherValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  DispatchRequest
	}{
		{
			name: "不正な通知タイプ",
			req:  DispatchRequest{Type: "SMS"},
		},
		{
			name: "EMAILタイプでemailペイロードが無い",
			req:  DispatchRequest{Type: DispatchEmail},
		},
		{
			name: "IN_APPタイプでinAppペイロードが無い",
			req:  DispatchRequest{Type: DispatchInApp},
		},
		{
			name: "BOTHタイプで片方のペイロードが無い",
			req: DispatchRequest{
				Type:  DispatchBoth,
				Email: &EmailPayload{To: []string{"a@example.com"}, Subject: "件名"},
			},
		},
		{
			name: "メールの宛先が空",
			req: DispatchRequest{
				Type:  DispatchEmail,
				Email: &EmailPayload{Subject: "件名"},
			},
		},
		{
			name: "メールの件名が空",
			req: DispatchRequest{
				Type:  DispatchEmail,
				Email: &EmailPayload{To: []string{"a@example.com"}},
			},
		},
		{
			name: "アプリ内通知のuserIdが空",
			req: DispatchRequest{
				Type:  DispatchInApp,
				InApp: &InAppPayload{Title: "タイトル"},
			},
		},
		{
			name: "アプリ内通知のtitleが空",
			req: DispatchRequest{
				Type:  DispatchInApp,
				InApp: &InAppPayload{UserID: "user-1"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sender := &mockSender{}
			realtime := &fakeRealtime{}
			d := NewDispatcher(sender, realtime)

			_, err := d.Send(context.Background(), tt.req)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error: got %v, want ValidationError", err)
			}
			if len(sender.sent()) != 0 {
				t.Error("検証エラー時はメールが送信されないべきです")
			}
			if len(realtime.delivered) != 0 {
				t.Error("検証エラー時はアプリ内配信されないべきです")
			}
		})
	}
}

// TestDispatcherSend は即時配信のテスト。
func TestDispatcherSend(t *testing.T) {
	t.Parallel()

	t.Run("EMAILタイプはメールのみ配信する", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		realtime := &fakeRealtime{}
		d := NewDispatcher(sender, realtime)

		result, err := d.Send(context.Background(), DispatchRequest{
			Type: DispatchEmail,
			Email: &EmailPayload{
				To:      []string{"a@example.com"},
				Subject: "件名",
				Text:    "本文",
			},
		})
		if err != nil {
			t.Fatalf("配信に失敗: %v", err)
		}

		if result.Status != "success" {
			t.Errorf("status: got %s, want success", result.Status)
		}
		if !strings.HasPrefix(result.ID, "notif-") {
			t.Errorf("IDのプレフィックス: got %s, want notif-", result.ID)
		}
		if len(sender.sent()) != 1 {
			t.Errorf("メール送信回数: got %d, want 1", len(sender.sent()))
		}
		if len(realtime.delivered) != 0 {
			t.Error("EMAILタイプではアプリ内配信されないべきです")
		}
	})

	t.Run("IN_APPタイプはアプリ内のみ配信する", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		realtime := &fakeRealtime{}
		d := NewDispatcher(sender, realtime)

		result, err := d.Send(context.Background(), DispatchRequest{
			Type: DispatchInApp,
			InApp: &InAppPayload{
				UserID:   "user-1",
				Title:    "タイトル",
				Message:  "本文",
				Metadata: map[string]any{"key": "value"},
			},
		})
		if err != nil {
			t.Fatalf("配信に失敗: %v", err)
		}

		if result.Status != "success" {
			t.Errorf("status: got %s, want success", result.Status)
		}
		pushes := realtime.deliveredTo("user-1")
		if len(pushes) != 1 {
			t.Fatalf("アプリ内配信回数: got %d, want 1", len(pushes))
		}
		if pushes[0].title != "タイトル" || pushes[0].metadata["key"] != "value" {
			t.Errorf("配信内容が一致しません: %+v", pushes[0])
		}
		if len(sender.sent()) != 0 {
			t.Error("IN_APPタイプではメール送信されないべきです")
		}
	})

	t.Run("BOTHタイプは両チャネルに配信する", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		realtime := &fakeRealtime{}
		d := NewDispatcher(sender, realtime)

		result, err := d.Send(context.Background(), DispatchRequest{
			Type:  DispatchBoth,
			Email: &EmailPayload{To: []string{"a@example.com"}, Subject: "件名"},
			InApp: &InAppPayload{UserID: "user-1", Title: "タイトル"},
		})
		if err != nil {
			t.Fatalf("配信に失敗: %v", err)
		}

		if result.Status != "success" {
			t.Errorf("status: got %s, want success", result.Status)
		}
		if len(sender.sent()) != 1 {
			t.Errorf("メール送信回数: got %d, want 1", len(sender.sent()))
		}
		if len(realtime.deliveredTo("user-1")) != 1 {
			t.Errorf("アプリ内配信回数: got %d, want 1", len(realtime.deliveredTo("user-1")))
		}
	})

	t.Run("BOTHタイプでメールが失敗してもアプリ内は配信される", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{err: errors.New("SMTP接続エラー")}
		realtime := &fakeRealtime{}
		d := NewDispatcher(sender, realtime)

		result, err := d.Send(context.Background(), DispatchRequest{
			Type:  DispatchBoth,
			Email: &EmailPayload{To: []string{"a@example.com"}, Subject: "件名"},
			InApp: &InAppPayload{UserID: "user-1", Title: "タイトル"},
		})
		if err != nil {
			t.Fatalf("配信結果ではなくエラーが返りました: %v", err)
		}

		if result.Status != "failed" {
			t.Errorf("status: got %s, want failed", result.Status)
		}
		if len(result.Errors) != 1 {
			t.Errorf("エラー件数: got %d, want 1", len(result.Errors))
		}
		if len(realtime.deliveredTo("user-1")) != 1 {
			t.Error("メール失敗時もアプリ内配信は行われるべきです")
		}
	})
}

// TestDispatcherSendBulk は一括配信のテスト。
func TestDispatcherSendBulk(t *testing.T) {
	t.Parallel()

	t.Run("各要素が独立に処理され順序が保持される", func(t *testing.T) {
		t.Parallel()
		sender := &mockSender{}
		realtime := &fakeRealtime{}
		d := NewDispatcher(sender, realtime)

		results := d.SendBulk(context.Background(), []DispatchRequest{
			{Type: DispatchInApp, InApp: &InAppPayload{UserID: "user-1", Title: "1件目"}},
			{Type: "INVALID"},
			{Type: DispatchInApp, InApp: &InAppPayload{UserID: "user-2", Title: "3件目"}},
		})

		if len(results) != 3 {
			t.Fatalf("結果件数: got %d, want 3", len(results))
		}
		if results[0].Status != "success" {
			t.Errorf("1件目のstatus: got %s, want success", results[0].Status)
		}
		if results[1].Status != "failed" {
			t.Errorf("2件目のstatus: got %s, want failed", results[1].Status)
		}
		if results[2].Status != "success" {
			t.Errorf("3件目のstatus: got %s, want success", results[2].Status)
		}
		if len(realtime.deliveredTo("user-2")) != 1 {
			t.Error("前の要素の失敗が後続の配信を妨げないべきです")
		}
	})

	t.Run("空のスライスは空の結果を返す", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(&mockSender{}, &fakeRealtime{})

		results := d.SendBulk(context.Background(), nil)
		if len(results) != 0 {
			t.Errorf("結果件数: got %d, want 0", len(results))
		}
	})
}

// TestDispatcherBroadcast は一斉配信のテスト。
func TestDispatcherBroadcast(t *testing.T) {
	t.Parallel()

	t.Run("全接続へ一斉配信する", func(t *testing.T) {
		t.Parallel()
		realtime := &fakeRealtime{}
		d := NewDispatcher(&mockSender{}, realtime)

		result, err := d.Broadcast(BroadcastInput{Title: "メンテナンスのお知らせ", Message: "本文"})
		if err != nil {
			t.Fatalf("一斉配信に失敗: %v", err)
		}

		if result.Status != "success" {
			t.Errorf("status: got %s, want success", result.Status)
		}
		if len(realtime.broadcasts) != 1 {
			t.Fatalf("一斉配信回数: got %d, want 1", len(realtime.broadcasts))
		}
		if realtime.broadcasts[0].title != "メンテナンスのお知らせ" {
			t.Errorf("title: got %s, want メンテナンスのお知らせ", realtime.broadcasts[0].title)
		}
	})

	t.Run("titleが無い場合はValidationError", func(t *testing.T) {
		t.Parallel()
		d := NewDispatcher(&mockSender{}, &fakeRealtime{})

		_, err := d.Broadcast(BroadcastInput{Message: "本文"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("error: got %v, want ValidationError", err)
		}
	})
}
