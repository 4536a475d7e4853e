// 通知サービスのエントリポイント。
// WebSocketによるリアルタイム配信、メール/アプリ内の即時配信、
// 既読管理付きの永続通知ストアを単一プロセスで提供する。
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/uts-dev/notification/internal/mail"
	"github.com/uts-dev/notification/internal/notification"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8086"
	}

	server, err := notification.NewServer(port, newSender())
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}

// newSender はMAIL_PROVIDER環境変数に応じたメール送信手段を生成する。
// smtp、sendgrid、未指定または不明な値の場合はログ出力のみのセンダーを返す。
func newSender() mail.Sender {
	from := os.Getenv("MAIL_FROM")
	if from == "" {
		from = "noreply@example.com"
	}

	switch os.Getenv("MAIL_PROVIDER") {
	case "smtp":
		smtpPort, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
		if err != nil {
			smtpPort = 587
		}
		return mail.NewSMTPSender(
			os.Getenv("SMTP_HOST"),
			smtpPort,
			os.Getenv("SMTP_USER"),
			os.Getenv("SMTP_PASS"),
			from,
		)
	case "sendgrid":
		return mail.NewSendGridSender(os.Getenv("SENDGRID_API_KEY"), from, "")
	default:
		log.Println("MAIL_PROVIDERが未指定のため、メールはログ出力のみになります")
		return &mail.LogSender{}
	}
}
