// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// ブラウザセッションCookieの検証、パニックリカバリ、Cookie認証向けCORS設定、
// ログイン試行のレート制限など、ゲートウェイで共通して使用するミドルウェアを含む。
package middleware
