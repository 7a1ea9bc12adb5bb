// Package apiclient は学務システムバックエンドAPIへの認証付きHTTPクライアントを提供する。
//
// Cookieベースのセッション認証を前提とし、全リクエストに資格情報を付与する。
// 保護されたエンドポイントが401を返した場合、プロセス内で高々1つの
// セッション更新リクエストを発行し、更新成功後に元のリクエストを1回だけ
// 再試行する。同時に401を観測した複数の呼び出し元は同一の更新結果を共有する。
// セッション更新自体が失敗して回復不能になった場合は、登録された
// セッション失効ハンドラを1回だけ呼び出す。
package apiclient
