// Package httpclient は外部サービスへのJSON形式HTTP通信を行うクライアントを提供する。
//
// トランザクショナルメールAPIへの送信や、他サービスからの内部通知作成API呼び出しなど、
// サービス間の通信パターンを統一する。デフォルトヘッダー（Bearer認証等）の設定に対応する。
package httpclient
