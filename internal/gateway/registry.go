package gateway

import (
	"sync"

	"github.com/nao1215/campushub/pkg/apiclient"
)

// clientRegistry はブラウザセッションIDごとのバックエンドAPIクライアントを保持する。
// クライアントはCookieジャーとセッション更新の調整状態を内包するため、
// 同一セッションのリクエストは必ず同一インスタンスを使う。
// プロセス再起動でジャーは失われるため、該当セッションは再ログインとなる。
type clientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*apiclient.Client
}

// newClientRegistry は新しいクライアントレジストリを生成する。
func newClientRegistry() *clientRegistry {
	return &clientRegistry{
		clients: make(map[string]*apiclient.Client),
	}
}

// get はセッションIDに対応するクライアントを返す。
func (r *clientRegistry) get(sessionID string) (*apiclient.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[sessionID]
	return c, ok
}

// put はセッションIDにクライアントを関連付ける。
func (r *clientRegistry) put(sessionID string, c *apiclient.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[sessionID] = c
}

// remove はセッションIDに対応するクライアントを破棄する。
func (r *clientRegistry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, sessionID)
}
