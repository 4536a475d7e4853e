// Package notification は通知サービスの内部実装を提供する。
//
// 一時的なマルチチャネル送信（メール/アプリ内/両方）のディスパッチと、
// 既読管理付きの永続通知ストアの2つの入口を持つ。永続通知の作成時には
// ベストエフォートでリアルタイム配信も行うが、配信の失敗は永続化の成否に影響しない。
package notification
