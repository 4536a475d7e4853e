package mail

import (
	"context"
	"fmt"
	"log"
)

// Message は送信するメールの内容。
type Message struct {
	// To は宛先メールアドレスの一覧。
	To []string
	// Subject はメールの件名。
	Subject string
	// Text はプレーンテキスト形式の本文。
	Text string
	// HTML はHTML形式の本文。空の場合はTextのみで送信される。
	HTML string
}

// Sender はメール送信機能の抽象。
// 送信の成否のみを返し、リトライは行わない。
type Sender interface {
	// Send はメールを送信する。失敗した場合はエラーを返す。
	Send(ctx context.Context, msg Message) error
}

// Validate はメッセージの必須フィールドを検証する。
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("宛先が指定されていません")
	}
	if m.Subject == "" {
		return fmt.Errorf("件名が指定されていません")
	}
	if m.Text == "" && m.HTML == "" {
		return fmt.Errorf("本文が指定されていません")
	}
	return nil
}

// LogSender はメールを実際には送信せずログに出力するSender。
// ローカル開発や結合テストで使用する。
type LogSender struct{}

// Send はメールの内容をログに出力する。常に成功する。
func (s *LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[Mail] 送信をスキップ（ログ出力のみ）: to=%v, subject=%q", msg.To, msg.Subject)
	return nil
}
