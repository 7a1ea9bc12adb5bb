package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestLogin はログインリクエストの送信内容を検証する。
func TestLogin(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"userId":"u1","email":"admin@example.ac.jp","displayName":"管理者","role":"admin"}`))
	}))
	defer ts.Close()

	client := New(ts.URL)
	res := client.Login(context.Background(), "admin@example.ac.jp", "secret")

	if !res.OK() {
		t.Fatalf("Login()が失敗: status=%d", res.Status)
	}
	if gotPath != "/api/auth/login" {
		t.Errorf("Path = %q, want %q", gotPath, "/api/auth/login")
	}

	var sent loginRequest
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("リクエストボディのパースに失敗: %v", err)
	}
	if sent.Email != "admin@example.ac.jp" || sent.Password != "secret" {
		t.Errorf("送信ボディ = %+v, 入力値が保持されるべき", sent)
	}
}

// TestValidateInvitation は招待トークンの検証リクエストを検証する。
func TestValidateInvitation(t *testing.T) {
	t.Parallel()

	var gotToken string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email":"new@example.ac.jp","role":"staff","expiresAt":"2026-09-30T00:00:00Z"}`))
	}))
	defer ts.Close()

	client := New(ts.URL)
	res := client.ValidateInvitation(context.Background(), "tok/with special+chars")

	if !res.OK() {
		t.Fatalf("ValidateInvitation()が失敗: status=%d", res.Status)
	}
	if gotToken != "tok/with special+chars" {
		t.Errorf("token = %q, エスケープが往復で保持されるべき", gotToken)
	}

	var inv Invitation
	if err := res.DecodeData(&inv); err != nil {
		t.Fatalf("DecodeData()でエラーが発生: %v", err)
	}
	if inv.Email != "new@example.ac.jp" || inv.Role != "staff" {
		t.Errorf("Invitation = %+v, want email/roleが設定された値", inv)
	}
}

// TestAcceptInvitation は招待受諾リクエストの送信内容を検証する。
func TestAcceptInvitation(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := New(ts.URL)
	res := client.AcceptInvitation(context.Background(), AcceptInvitationRequest{
		Token:       "tok1",
		DisplayName: "新規職員",
		Password:    "initial-password",
	})

	if res.Status != http.StatusCreated {
		t.Errorf("Status = %d, want %d", res.Status, http.StatusCreated)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("Method = %q, want %q", gotMethod, http.MethodPost)
	}
	if gotPath != "/api/invitations/accept" {
		t.Errorf("Path = %q, want %q", gotPath, "/api/invitations/accept")
	}
}

// TestLogout はログアウトリクエストの送信内容を検証する。
func TestLogout(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := New(ts.URL)
	res := client.Logout(context.Background())

	if res.Status != http.StatusNoContent {
		t.Errorf("Status = %d, want %d", res.Status, http.StatusNoContent)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/auth/logout" {
		t.Errorf("リクエスト = %s %s, want POST /api/auth/logout", gotMethod, gotPath)
	}
}
