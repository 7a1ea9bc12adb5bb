// Package gateway は管理画面向けBFF（Backend for Frontend）サービスの内部実装を提供する。
//
// ブラウザからのログインを受けて学務システムバックエンドとのセッションを確立し、
// ブラウザセッションごとに1つの認証付きAPIクライアント（Cookieジャーと
// セッション更新の調整状態を内包）を保持する。管理APIへのリクエストは
// このクライアント経由でバックエンドに転送される。バックエンドセッションが
// 回復不能に失効した場合はセッションレコードを失効扱いにし、ブラウザ側は
// 再ログインを求められる。
package gateway
