package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter はクライアントIPごとのトークンバケットを保持する。
type ipLimiter struct {
	limiter *rate.Limiter
	// lastSeen は最後にリクエストを受けた時刻。古いエントリの破棄に使う。
	lastSeen time.Time
}

// LoginRateLimit はクライアントIPごとにリクエスト頻度を制限するGinミドルウェアを返す。
// パスワード総当たりを遅くするためにログインエンドポイントに適用する。
// rは1秒あたりの補充レート、burstはバースト許容量。
func LoginRateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*ipLimiter)

	// 10分以上アクセスのないIPのバケットを破棄する
	cleanup := func(now time.Time) {
		for ip, l := range limiters {
			if now.Sub(l.lastSeen) > 10*time.Minute {
				delete(limiters, ip)
			}
		}
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		l, ok := limiters[ip]
		if !ok {
			if len(limiters) > 1000 {
				cleanup(now)
			}
			l = &ipLimiter{limiter: rate.NewLimiter(r, burst)}
			limiters[ip] = l
		}
		l.lastSeen = now
		allowed := l.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "ログイン試行が多すぎます。しばらく待ってから再試行してください",
			})
			return
		}

		c.Next()
	}
}
