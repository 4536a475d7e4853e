// Package presence はユーザーのオンライン状態を管理するプロセス内レジストリを提供する。
//
// ユーザーごとのアクティブセッション数を参照カウントで追跡し、
// オフライン→オンライン、オンライン→オフラインの遷移を正確に1回だけ通知する。
// 状態はプロセスローカルであり、プロセス間での共有は行わない。
package presence
