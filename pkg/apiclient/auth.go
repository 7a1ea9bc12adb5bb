package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Account は認証済みユーザーのアカウント情報。
type Account struct {
	// UserID はユーザーの一意識別子。
	UserID string `json:"userId"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"displayName"`
	// Role はユーザーのロール（例: "admin", "staff"）。
	Role string `json:"role"`
}

// Invitation は招待トークンの検証結果。
type Invitation struct {
	// Email は招待されたメールアドレス。
	Email string `json:"email"`
	// Role は招待時に付与されるロール。
	Role string `json:"role"`
	// ExpiresAt は招待の有効期限。
	ExpiresAt string `json:"expiresAt"`
}

// AcceptInvitationRequest は招待受諾リクエストのボディ。
type AcceptInvitationRequest struct {
	// Token は招待トークン。
	Token string `json:"token"`
	// DisplayName は登録するユーザーの表示名。
	DisplayName string `json:"displayName"`
	// Password は登録するパスワード。
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでログインする。
// 成功するとバックエンドがセッションCookieを発行し、以降のリクエストに
// 自動的に付与される。ログインパスは公開パスであり、認証失敗の401が
// セッション更新を誘発することはない。
func (c *Client) Login(ctx context.Context, email, password string) *Response {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return &Response{Status: 0, Err: &ErrorResponse{Message: err.Error()}}
	}
	return c.Post(ctx, loginPath, body)
}

// Logout は現在のセッションを終了する。
func (c *Client) Logout(ctx context.Context) *Response {
	return c.Post(ctx, logoutPath, nil)
}

// Me は認証済みユーザー自身のアカウント情報を取得する。
// 結果はDecodeDataでAccountにデシリアライズできる。
func (c *Client) Me(ctx context.Context) *Response {
	return c.Get(ctx, mePath)
}

// ValidateInvitation は招待トークンを検証する。
// 結果はDecodeDataでInvitationにデシリアライズできる。
func (c *Client) ValidateInvitation(ctx context.Context, token string) *Response {
	return c.Get(ctx, invitationValidatePath+"?token="+url.QueryEscape(token))
}

// AcceptInvitation は招待を受諾してアカウントを登録する。
func (c *Client) AcceptInvitation(ctx context.Context, req AcceptInvitationRequest) *Response {
	body, err := json.Marshal(req)
	if err != nil {
		return &Response{Status: 0, Err: &ErrorResponse{Message: err.Error()}}
	}
	return c.Do(ctx, invitationAcceptPath, Options{Method: http.MethodPost, Body: body})
}
