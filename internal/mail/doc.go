// Package mail はメール送信のプロバイダ非依存な抽象と実装を提供する。
//
// SMTPリレーとトランザクショナルメールAPI（SendGrid互換）の2つのプロバイダを持つ。
// 呼び出し側はSenderインターフェースのみに依存し、プロバイダは環境変数で切り替える。
package mail
