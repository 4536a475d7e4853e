// Package realtime はWebSocketチャネルと通知配信のゲートウェイを提供する。
//
// セッションのライフサイクル（接続→登録→切断）を管理し、
// プレゼンスレジストリへの接続/切断の反映と、ユーザールーム・組織ルームへの
// イベントのファンアウトを行う。配信はすべてat-most-onceのベストエフォートであり、
// バッファやリトライは持たない。
package realtime
