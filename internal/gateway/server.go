package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/nao1215/campushub/pkg/apiclient"
	"github.com/nao1215/campushub/pkg/middleware"
)

// Server は管理画面向けBFFゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はブラウザセッションの永続化ストア。
	store *sessionStore
	// clients はセッションIDごとのバックエンドAPIクライアント。
	clients *clientRegistry
	// public は公開エンドポイント（招待検証等）転送用の匿名クライアント。
	public *apiclient.Client
	// jwtSecret はセッショントークン署名用の秘密鍵。
	jwtSecret string
	// backendURL は学務システムバックエンドのベースURL。
	backendURL string
}

// NewServer は新しいBFFゲートウェイサーバーを生成する。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("GATEWAY_DB_PATH", "/data/campushub.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	backendURL := getEnvOr("BACKEND_URL", "http://localhost:9000")
	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))

	s := &Server{
		router:     router,
		port:       port,
		db:         sqlDB,
		store:      newSessionStore(sqlDB),
		clients:    newClientRegistry(),
		public:     apiclient.New(backendURL),
		jwtSecret:  jwtSecret,
		backendURL: backendURL,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証エンドポイント
	auth := s.router.Group("/auth")
	{
		auth.POST("/login", middleware.LoginRateLimit(rate.Limit(1), 5), s.handleLogin())
		auth.POST("/logout", middleware.SessionAuth(s.jwtSecret), s.handleLogout())
		// 招待フロー（未認証で使用できる）
		auth.GET("/invitations/validate", s.handleValidateInvitation())
		auth.POST("/invitations/accept", s.handleAcceptInvitation())
	}

	// 認証必須の管理APIエンドポイント。
	// /me はセッションキャッシュから応答し、それ以外はバックエンドへ転送する。
	api := s.router.Group("/api/v1")
	api.Use(middleware.SessionAuth(s.jwtSecret))
	api.Any("/*path", s.handleAPI())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// loginRequest はブラウザからのログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin はバックエンドへのログインを仲介するハンドラを返す。
// 成功時はセッションごとのAPIクライアントを確立し、セッショントークンを
// Cookieとしてブラウザに渡す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスとパスワードを指定してください"})
			return
		}

		ctx := c.Request.Context()
		client := apiclient.New(s.backendURL)

		if res := client.Login(ctx, req.Email, req.Password); !res.OK() {
			s.writeBackendResponse(c, res)
			return
		}

		meRes := client.Me(ctx)
		if !meRes.OK() {
			s.writeBackendResponse(c, meRes)
			return
		}
		var account apiclient.Account
		if err := meRes.DecodeData(&account); err != nil {
			log.Printf("アカウント情報のデシリアライズに失敗: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "バックエンドのレスポンスが不正です"})
			return
		}

		sessionID := uuid.New().String()
		client.SetSessionExpiredHandler(func() {
			s.expireSession(sessionID)
		})

		if err := s.store.createSession(ctx, &Session{
			ID:          sessionID,
			UserID:      account.UserID,
			Email:       account.Email,
			DisplayName: account.DisplayName,
			Role:        account.Role,
		}); err != nil {
			log.Printf("セッション作成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの作成に失敗しました"})
			return
		}
		s.clients.put(sessionID, client)

		token, err := middleware.GenerateSessionToken(s.jwtSecret, sessionID, account.Email)
		if err != nil {
			log.Printf("セッショントークン生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookieName, token, int((24 * time.Hour).Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"user": account})
	}
}

// handleLogout はセッションを終了するハンドラを返す。
// バックエンドからのログアウトはベストエフォートで行う。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.GetSessionID(c)
		ctx := c.Request.Context()

		if client, ok := s.clients.get(sessionID); ok {
			if res := client.Logout(ctx); !res.OK() {
				log.Printf("バックエンドからのログアウトに失敗: session=%s, status=%d", sessionID, res.Status)
			}
		}
		s.clients.remove(sessionID)
		if err := s.store.deleteSession(ctx, sessionID); err != nil {
			log.Printf("セッション削除エラー: %v", err)
		}

		c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleValidateInvitation は招待トークンの検証をバックエンドに転送するハンドラを返す。
func (s *Server) handleValidateInvitation() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "招待トークンを指定してください"})
			return
		}
		res := s.public.ValidateInvitation(c.Request.Context(), token)
		s.writeBackendResponse(c, res)
	}
}

// handleAcceptInvitation は招待の受諾をバックエンドに転送するハンドラを返す。
func (s *Server) handleAcceptInvitation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req apiclient.AcceptInvitationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}
		res := s.public.AcceptInvitation(c.Request.Context(), req)
		s.writeBackendResponse(c, res)
	}
}

// handleAPI は認証済みの管理APIリクエストを処理するハンドラを返す。
func (s *Server) handleAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param("path") == "/me" && c.Request.Method == http.MethodGet {
			s.handleMe(c)
			return
		}
		s.forward(c)
	}
}

// handleMe はセッションにキャッシュされた認証済みユーザー情報を返す。
func (s *Server) handleMe(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)

	sess, err := s.store.getSession(c.Request.Context(), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "セッションが見つかりません。再度ログインしてください"})
		return
	}
	if err != nil {
		log.Printf("セッション取得エラー: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの取得に失敗しました"})
		return
	}
	if sess.Expired {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "セッションの有効期限が切れました。再度ログインしてください"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": apiclient.Account{
		UserID:      sess.UserID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		Role:        sess.Role,
	}})
}

// forward は管理APIリクエストをセッションのクライアント経由でバックエンドに転送する。
// エンティティ（学科・課程・科目等）のセマンティクスには関知しない。
func (s *Server) forward(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)

	client, ok := s.clients.get(sessionID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "セッションの有効期限が切れました。再度ログインしてください"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディの読み取りに失敗しました"})
		return
	}

	path := "/api" + c.Param("path")
	if q := c.Request.URL.RawQuery; q != "" {
		path += "?" + q
	}

	res := client.Do(c.Request.Context(), path, apiclient.Options{
		Method: c.Request.Method,
		Body:   body,
	})

	if err := s.store.touchSession(c.Request.Context(), sessionID); err != nil {
		log.Printf("最終アクセス時刻の更新エラー: %v", err)
	}

	s.writeBackendResponse(c, res)
}

// expireSession はバックエンドセッションの回復不能な失効を記録する。
// apiclientのセッション失効ハンドラから呼ばれる。
func (s *Server) expireSession(sessionID string) {
	s.clients.remove(sessionID)
	if err := s.store.markExpired(context.Background(), sessionID); err != nil {
		log.Printf("セッション失効の記録に失敗: session=%s, error=%v", sessionID, err)
	}
	log.Printf("バックエンドセッションが失効しました: session=%s", sessionID)
}

// writeBackendResponse はバックエンドの正規化されたレスポンスをそのままブラウザに返す。
// トランスポート障害（Status 0）は502に読み替える。
func (s *Server) writeBackendResponse(c *gin.Context, res *apiclient.Response) {
	if res.Status == 0 {
		if res.Err != nil {
			log.Printf("バックエンドとの通信に失敗: %s", res.Err.Message)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "バックエンドとの通信に失敗しました"})
		return
	}
	if res.Err != nil {
		c.JSON(res.Status, gin.H{"error": res.Err})
		return
	}
	if len(res.Data) > 0 {
		c.Data(res.Status, "application/json", res.Data)
		return
	}
	c.Status(res.Status)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
