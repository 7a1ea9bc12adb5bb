package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Response はバックエンドAPI呼び出しの正規化された結果。
// DataとErrは排他的で、Statusは常に設定される。
// Status 0 はHTTPレスポンスを受信できなかったトランスポート障害を表す。
type Response struct {
	// Status はHTTPステータスコード。トランスポート障害時は0。
	Status int
	// Data は2xxレスポンスのJSONボディ。ボディが空、またはJSONとして
	// 解釈できない場合はnil（エラーとしては扱わない）。
	Data json.RawMessage
	// Err は非2xxレスポンスのエラーエンベロープ。成功時はnil。
	Err *ErrorResponse
}

// OK はレスポンスが2xx成功かどうかを返す。
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// DecodeData はDataを指定された構造体にデシリアライズする。
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("レスポンスボディが空です")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return nil
}

// ErrorResponse はバックエンドAPIが返すJSONエラーエンベロープ。
type ErrorResponse struct {
	// Code は機械可読なエラーコード。
	Code string `json:"code,omitempty"`
	// Message は人間可読なエラーメッセージ。
	Message string `json:"message"`
	// Timestamp はエラー発生時刻の文字列表現。
	Timestamp string `json:"timestamp,omitempty"`
	// Details はフィールド別メッセージのマップ、またはメッセージの配列。
	Details *Details `json:"details,omitempty"`
}

// Details はエラーエンベロープのdetailsフィールド。
// バックエンドは map<string,string> と []string の両形式を返すため、
// パースを試行して合致した側を保持する。
type Details struct {
	// Fields はフィールド名→メッセージのマップ形式。
	Fields map[string]string
	// Items はメッセージの配列形式。
	Items []string
}

// UnmarshalJSON はマップ形式、配列形式の順にパースを試みる。
// どちらにも合致しない場合は空のDetailsとする（寛容なパース）。
func (d *Details) UnmarshalJSON(data []byte) error {
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err == nil {
		d.Fields = fields
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		d.Items = items
		return nil
	}
	return nil
}

// MarshalJSON は保持している形式のままシリアライズする。
func (d *Details) MarshalJSON() ([]byte, error) {
	if d.Fields != nil {
		return json.Marshal(d.Fields)
	}
	if d.Items != nil {
		return json.Marshal(d.Items)
	}
	return []byte("null"), nil
}

// parseErrorBody は非2xxレスポンスのボディをエラーエンベロープに変換する。
// JSONエンベロープとして解釈できない場合はボディのテキストを、
// ボディが空の場合はステータスラインをメッセージとして包む。
func parseErrorBody(status int, body []byte) *ErrorResponse {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &ErrorResponse{Message: fmt.Sprintf("%d %s", status, http.StatusText(status))}
	}

	var e ErrorResponse
	if err := json.Unmarshal(trimmed, &e); err == nil && e.Message != "" {
		return &e
	}
	return &ErrorResponse{Message: string(trimmed)}
}

// parseSuccessBody は2xxレスポンスのボディをDataに変換する。
// 空またはJSONとして不正なボディは「データなしの成功」としてnilを返す。
func parseSuccessBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil
	}
	return json.RawMessage(trimmed)
}
