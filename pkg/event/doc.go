// Package event はWebSocketチャネル上の通知・プレゼンスイベントの
// 型定義とシリアライズ処理を提供する。
//
// すべてのイベントは {event, data} 形式のEnvelopeとしてやり取りされる。
// クライアントとサーバーの双方がこのパッケージの定義に従う。
package event
