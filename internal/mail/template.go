package mail

import (
	"fmt"
	"html"
	"strings"
)

// InvitationData は組織招待メールのテンプレートに埋め込むデータ。
type InvitationData struct {
	// OrganizationName は招待元の組織名。
	OrganizationName string
	// InviterName は招待者の表示名。空の場合は省略した文面になる。
	InviterName string
	// Role は招待されたロール（ADMIN または MEMBER）。
	Role string
	// InviteURL は招待を受諾するためのURL。
	InviteURL string
	// ExpiresIn は招待の有効期限の表示文字列（例: "7日間"）。
	ExpiresIn string
}

// InvitationSubject は組織招待メールの件名を生成する。
func InvitationSubject(data InvitationData) string {
	return fmt.Sprintf("%s への招待", data.OrganizationName)
}

// InvitationHTML は組織招待メールのHTML本文を生成する。
// ユーザー入力はすべてエスケープされる。
func InvitationHTML(data InvitationData) string {
	orgName := html.EscapeString(data.OrganizationName)

	roleDisplay := "メンバー"
	roleDescription := "割り当てられたプロジェクトへのアクセス"
	if data.Role == "ADMIN" {
		roleDisplay = "管理者"
		roleDescription = "すべてのプロジェクトと設定へのフルアクセス"
	}

	greeting := fmt.Sprintf("<strong>%s</strong> に招待されました。", orgName)
	if data.InviterName != "" {
		greeting = fmt.Sprintf("<strong>%s</strong> さんから <strong>%s</strong> に招待されました。",
			html.EscapeString(data.InviterName), orgName)
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="ja">
<head><meta charset="UTF-8"><title>招待のお知らせ</title></head>
<body style="margin:0;padding:0;font-family:sans-serif;background-color:#f5f7fa;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width:600px;margin:0 auto;">
    <tr>
      <td style="background:linear-gradient(135deg,#00C4AB 0%,#00A896 100%);border-radius:16px 16px 0 0;padding:40px;">
        <h1 style="margin:0;font-size:28px;color:#ffffff;">招待が届いています</h1>
`)
	fmt.Fprintf(&b, `        <p style="margin:8px 0 0;font-size:16px;color:rgba(255,255,255,0.9);">%s に参加しましょう</p>
`, orgName)
	b.WriteString(`      </td>
    </tr>
    <tr>
      <td style="background-color:#ffffff;padding:40px;">
`)
	fmt.Fprintf(&b, `        <p style="margin:0 0 24px;font-size:16px;color:#374151;">%s</p>
`, greeting)
	fmt.Fprintf(&b, `        <table role="presentation" width="100%%" style="margin:0 0 32px;"><tr>
          <td style="background-color:#f0fdf9;border:1px solid #99f6e4;border-radius:12px;padding:20px;">
            <p style="margin:0 0 4px;font-size:14px;color:#6b7280;">あなたのロール</p>
            <p style="margin:0;font-size:16px;color:#111827;font-weight:600;">%s</p>
            <p style="margin:4px 0 0;font-size:14px;color:#6b7280;">%s</p>
          </td>
        </tr></table>
`, roleDisplay, roleDescription)
	fmt.Fprintf(&b, `        <p style="margin:0 0 32px;text-align:center;">
          <a href="%s" style="display:inline-block;background-color:#00C4AB;color:#ffffff;padding:14px 32px;border-radius:8px;text-decoration:none;font-weight:600;">招待を受諾する</a>
        </p>
`, html.EscapeString(data.InviteURL))
	if data.ExpiresIn != "" {
		fmt.Fprintf(&b, `        <p style="margin:0;font-size:13px;color:#9ca3af;">この招待は%s有効です。</p>
`, html.EscapeString(data.ExpiresIn))
	}
	b.WriteString(`      </td>
    </tr>
  </table>
</body>
</html>`)
	return b.String()
}

// InvitationText は組織招待メールのプレーンテキスト本文を生成する。
// HTMLメールを表示できないクライアント向けのフォールバック。
func InvitationText(data InvitationData) string {
	var b strings.Builder
	if data.InviterName != "" {
		fmt.Fprintf(&b, "%s さんから %s に招待されました。\n\n", data.InviterName, data.OrganizationName)
	} else {
		fmt.Fprintf(&b, "%s に招待されました。\n\n", data.OrganizationName)
	}
	fmt.Fprintf(&b, "以下のURLから招待を受諾してください:\n%s\n", data.InviteURL)
	if data.ExpiresIn != "" {
		fmt.Fprintf(&b, "\nこの招待は%s有効です。\n", data.ExpiresIn)
	}
	return b.String()
}
