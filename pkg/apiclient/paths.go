package apiclient

import "strings"

// バックエンドAPIのエンドポイントパス。
const (
	loginPath              = "/api/auth/login"
	logoutPath             = "/api/auth/logout"
	defaultRefreshPath     = "/api/auth/refresh"
	mePath                 = "/api/account/me"
	invitationValidatePath = "/api/invitations/validate"
	invitationAcceptPath   = "/api/invitations/accept"
)

// defaultPublicPaths はセッション認証を必要としない公開エンドポイント一覧。
// 公開パスへのリクエストが401を返してもセッション更新は行わない
// （ログイン失敗の401で更新が走ること、更新エンドポイント自身の再帰を防ぐ）。
var defaultPublicPaths = []string{
	loginPath,
	defaultRefreshPath,
	invitationValidatePath,
	invitationAcceptPath,
}

// isPublicPath はパスが公開エンドポイントかどうかを判定する。
// クエリ文字列を除去した上で、許可リストとの完全一致、
// または「許可パス + /」を前置辞とするサブパスを公開と見なす。
func isPublicPath(publicPaths []string, path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
