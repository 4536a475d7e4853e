package mail

import (
	"context"
	"fmt"

	"github.com/uts-dev/notification/pkg/httpclient"
)

// defaultSendGridBaseURL はSendGrid APIのデフォルトベースURL。
const defaultSendGridBaseURL = "https://api.sendgrid.com"

// SendGridSender はトランザクショナルメールAPI（SendGrid v3互換）経由で
// メールを送信するSender。
type SendGridSender struct {
	// client はAPIへのHTTPクライアント。Bearer認証ヘッダーを持つ。
	client *httpclient.Client
	// from は送信元メールアドレス。
	from string
}

// NewSendGridSender は新しいAPI送信クライアントを生成する。
// baseURLが空の場合はSendGridの本番APIを使用する。
func NewSendGridSender(apiKey, from, baseURL string) *SendGridSender {
	if baseURL == "" {
		baseURL = defaultSendGridBaseURL
	}
	return &SendGridSender{
		client: httpclient.New(baseURL,
			httpclient.WithHeader("Authorization", "Bearer "+apiKey),
		),
		from: from,
	}
}

// sendGridAddress はSendGrid APIのメールアドレス表現。
type sendGridAddress struct {
	// Email はメールアドレス。
	Email string `json:"email"`
}

// sendGridContent はSendGrid APIの本文表現。
type sendGridContent struct {
	// Type は本文のMIMEタイプ（text/plain または text/html）。
	Type string `json:"type"`
	// Value は本文の内容。
	Value string `json:"value"`
}

// sendGridPersonalization はSendGrid APIの宛先グループ表現。
type sendGridPersonalization struct {
	// To は宛先の一覧。
	To []sendGridAddress `json:"to"`
}

// sendGridRequest はSendGrid v3 Mail Send APIのリクエストボディ。
type sendGridRequest struct {
	// Personalizations は宛先グループの一覧。
	Personalizations []sendGridPersonalization `json:"personalizations"`
	// From は送信元。
	From sendGridAddress `json:"from"`
	// Subject は件名。
	Subject string `json:"subject"`
	// Content は本文の一覧。text/plainを先に置く必要がある。
	Content []sendGridContent `json:"content"`
}

// Send はトランザクショナルメールAPI経由でメールを送信する。
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("メッセージの検証に失敗: %w", err)
	}

	to := make([]sendGridAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sendGridAddress{Email: addr})
	}

	var content []sendGridContent
	if msg.Text != "" {
		content = append(content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	if msg.HTML != "" {
		content = append(content, sendGridContent{Type: "text/html", Value: msg.HTML})
	}

	req := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: to}},
		From:             sendGridAddress{Email: s.from},
		Subject:          msg.Subject,
		Content:          content,
	}

	if err := s.client.PostJSON(ctx, "/v3/mail/send", req, nil); err != nil {
		return fmt.Errorf("メールAPIへの送信に失敗: %w", err)
	}
	return nil
}
