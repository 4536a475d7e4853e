package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// sendMailHook はテストでSMTP送信処理を差し替えるためのフック。
var sendMailHook = smtp.SendMail

// SMTPSender はSMTPリレー経由でメールを送信するSender。
type SMTPSender struct {
	// Host はSMTPサーバーのホスト名。
	Host string
	// Port はSMTPサーバーのポート番号。
	Port int
	// User はSMTP認証のユーザー名。
	User string
	// Pass はSMTP認証のパスワード。
	Pass string
	// From は送信元メールアドレス。
	From string
}

// NewSMTPSender は新しいSMTP送信クライアントを生成する。
func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{
		Host: host,
		Port: port,
		User: user,
		Pass: pass,
		From: from,
	}
}

// Send はSMTPリレー経由でメールを送信する。
// HTML本文がある場合はHTMLメールとして、無い場合はプレーンテキストとして送信する。
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("メッセージの検証に失敗: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("コンテキストが無効: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ","))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	if msg.HTML != "" {
		b.WriteString("MIME-Version: 1.0\r\n")
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.Text)
	}

	if err := sendMailHook(addr, auth, s.From, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("SMTP送信に失敗: %w", err)
	}
	return nil
}
