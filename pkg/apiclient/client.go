package apiclient

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// Client は1つの論理セッションを代表する認証付きHTTPクライアント。
// Cookieジャーを保持し、全リクエストにセッションCookieを付与する。
// セッション更新の調整状態を内包するため、1セッションにつき1インスタンスを
// 生成して使い回すこと。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。Cookieジャーを持つ。
	httpClient *http.Client
	// baseURL は接続先バックエンドのベースURL。
	baseURL string
	// refreshPath はセッション更新エンドポイントのパス。
	refreshPath string
	// publicPaths はセッション更新の対象外となる公開パスの許可リスト。
	publicPaths []string

	// mu はinflightを保護する。
	mu sync.Mutex
	// inflight は実行中のセッション更新。nilは更新なし（Idle状態）を表す。
	inflight *refreshCall

	// handlerMu はonSessionExpiredを保護する。
	handlerMu sync.Mutex
	// onSessionExpired はセッションが回復不能になった際に呼ばれるハンドラ。
	onSessionExpired func()
}

// refreshCall は実行中のセッション更新を表す。
// 更新を必要とする全呼び出し元がdoneを待ち、同一のokを観測する。
type refreshCall struct {
	done chan struct{}
	ok   bool
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithHTTPClient は内部のHTTPクライアントを差し替える。
// Cookieベースの認証にはCookieジャーを持つクライアントを指定すること。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRefreshPath はセッション更新エンドポイントのパスを差し替える。
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithPublicPaths は公開パスの許可リストを差し替える。
func WithPublicPaths(paths []string) Option {
	return func(c *Client) {
		c.publicPaths = append([]string(nil), paths...)
	}
}

// New は新しい認証付きAPIクライアントを生成する。
// baseURLには接続先バックエンドのベースURL（例: "https://api.example.ac.jp"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		baseURL:     baseURL,
		refreshPath: defaultRefreshPath,
		publicPaths: append([]string(nil), defaultPublicPaths...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetSessionExpiredHandler はセッション失効ハンドラを登録する。
// セッション更新が回復不能な失敗（401/403/404）に終わった際、
// 更新1回につき1回だけ呼び出される。nilを渡すと登録を解除する。
// 再登録は以前のハンドラを置き換える。
func (c *Client) SetSessionExpiredHandler(fn func()) {
	c.handlerMu.Lock()
	c.onSessionExpired = fn
	c.handlerMu.Unlock()
}

// Options はリクエストの指定内容。
type Options struct {
	// Method はHTTPメソッド。空の場合はGET。
	Method string
	// Body はシリアライズ済みのJSONボディ。呼び出し元が事前に変換する。
	Body []byte
	// Header は追加のHTTPヘッダー。同名のデフォルトヘッダーを上書きする。
	Header http.Header
}

// Do は1つの論理リクエストを実行し、結果をResponseに正規化して返す。
// Goのエラーは返さない。トランスポート障害はStatus 0、HTTPエラーは
// サーバーが返したステータスとエラーエンベロープとしてResponseに載る。
//
// 保護されたパスが401を返した場合はセッション更新を1回試み、成功すれば
// 元のリクエストを1回だけ再試行する。再試行後の401はそのまま返す。
func (c *Client) Do(ctx context.Context, path string, opts Options) *Response {
	res := c.send(ctx, path, opts)
	if res.Status != http.StatusUnauthorized || isPublicPath(c.publicPaths, path) {
		return res
	}

	ok, err := c.awaitRefresh(ctx)
	if err != nil {
		return &Response{Status: 0, Err: &ErrorResponse{Message: err.Error()}}
	}
	if !ok {
		if res.Err == nil {
			res.Err = &ErrorResponse{Message: "Unauthorized"}
		}
		return res
	}
	return c.send(ctx, path, opts)
}

// Get はGETリクエストを実行する。
func (c *Client) Get(ctx context.Context, path string) *Response {
	return c.Do(ctx, path, Options{})
}

// Post はシリアライズ済みJSONボディでPOSTリクエストを実行する。
func (c *Client) Post(ctx context.Context, path string, body []byte) *Response {
	return c.Do(ctx, path, Options{Method: http.MethodPost, Body: body})
}

// Put はシリアライズ済みJSONボディでPUTリクエストを実行する。
func (c *Client) Put(ctx context.Context, path string, body []byte) *Response {
	return c.Do(ctx, path, Options{Method: http.MethodPut, Body: body})
}

// Delete はDELETEリクエストを実行する。
func (c *Client) Delete(ctx context.Context, path string) *Response {
	return c.Do(ctx, path, Options{Method: http.MethodDelete})
}

// send は1回のHTTPリクエストを実行してResponseに正規化する。
// セッション更新や再試行の判断はここでは行わない。
func (c *Client) send(ctx context.Context, path string, opts Options) *Response {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(opts.Body) > 0 {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &Response{Status: 0, Err: &ErrorResponse{Message: err.Error()}}
	}

	req.Header.Set("Content-Type", "application/json")
	for k, vs := range opts.Header {
		for i, v := range vs {
			if i == 0 {
				req.Header.Set(k, v)
			} else {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[apiclient] %s %s のリクエスト送信に失敗: %v", method, path, err)
		return &Response{Status: 0, Err: &ErrorResponse{Message: err.Error()}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Response{Status: 0, Err: &ErrorResponse{Message: err.Error()}}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Data: parseSuccessBody(body)}
	}
	return &Response{Status: resp.StatusCode, Err: parseErrorBody(resp.StatusCode, body)}
}

// awaitRefresh はセッション更新の完了を待ち、成否を返す。
// 更新が実行中でなければ新たに開始し、実行中であればその結果に相乗りする。
// プロセス内で同時に実行される更新リクエストは高々1つ。
func (c *Client) awaitRefresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	call := c.inflight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		c.inflight = call
		go c.runRefresh(call)
	}
	c.mu.Unlock()

	select {
	case <-call.done:
		return call.ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// runRefresh はセッション更新を実行し、待機中の全呼び出し元に結果を通知する。
// inflightは待機者が再開する前にクリアする（次の401は新しい更新を開始できる）。
func (c *Client) runRefresh(call *refreshCall) {
	ok, terminal := c.refreshSession()

	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()

	if terminal {
		c.notifySessionExpired()
	}

	call.ok = ok
	close(call.done)
}

// refreshSession はセッション更新エンドポイントをPOSTで呼び出す。
// 200は成功。401/403/404はセッションが回復不能な終端的失敗。
// それ以外のステータスおよびトランスポート障害は非終端的失敗として扱い、
// セッション失効ハンドラは呼ばない。
//
// 更新は複数の呼び出し元に共有されるため、特定の呼び出し元のコンテキスト
// ではなくバックグラウンドコンテキストで実行する。
func (c *Client) refreshSession() (ok, terminal bool) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.baseURL+c.refreshPath, nil)
	if err != nil {
		return false, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[apiclient] セッション更新リクエストに失敗: %v", err)
		return false, false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, false
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		log.Printf("[apiclient] セッションが失効しました: status=%d", resp.StatusCode)
		return false, true
	default:
		log.Printf("[apiclient] セッション更新が一時的に失敗: status=%d", resp.StatusCode)
		return false, false
	}
}

// notifySessionExpired は登録済みのセッション失効ハンドラを呼び出す。
func (c *Client) notifySessionExpired() {
	c.handlerMu.Lock()
	fn := c.onSessionExpired
	c.handlerMu.Unlock()
	if fn != nil {
		fn()
	}
}
