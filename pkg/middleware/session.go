package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName はブラウザセッショントークンを保持するCookie名。
const SessionCookieName = "campushub_session"

// SessionClaims はブラウザセッショントークンのクレーム（ペイロード）を表す。
// バックエンドの資格情報そのものは含めず、サーバー側セッションへの参照のみを持つ。
type SessionClaims struct {
	jwt.RegisteredClaims
	// SessionID はサーバー側で管理するブラウザセッションの一意識別子。
	SessionID string `json:"session_id"`
	// Email はログイン中ユーザーのメールアドレス。
	Email string `json:"email"`
}

// GenerateSessionToken はブラウザセッション用のJWTトークンを生成する。
// ログイン成功時にゲートウェイが呼び出し、Cookieとしてブラウザに渡す。
func GenerateSessionToken(secret, sessionID, email string) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "campushub-gateway",
		},
		SessionID: sessionID,
		Email:     email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("セッショントークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// SessionAuth はセッションCookieを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "session_id" と "email" を設定する。
func SessionAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(SessionCookieName)
		if err != nil || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "ログインが必要です",
			})
			return
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "セッショントークンが無効です",
			})
			return
		}

		c.Set("session_id", claims.SessionID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// GetSessionID はGinコンテキストからセッションIDを取得する。
// SessionAuthミドルウェアが事前に適用されている必要がある。
func GetSessionID(c *gin.Context) string {
	sessionID, _ := c.Get("session_id")
	if id, ok := sessionID.(string); ok {
		return id
	}
	return ""
}
