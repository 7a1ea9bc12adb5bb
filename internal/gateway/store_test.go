package gateway

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

// newTestStore はインメモリSQLiteを使うテスト用のセッションストアを生成する。
func newTestStore(t *testing.T) *sessionStore {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// インメモリDBは接続ごとに独立するため、接続を1つに固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}
	return newSessionStore(sqlDB)
}

// TestSessionStore はセッションレコードのCRUDを検証する。
func TestSessionStore(t *testing.T) {
	t.Parallel()

	t.Run("作成したセッションを取得できること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		err := store.createSession(ctx, &Session{
			ID:          "sess-1",
			UserID:      "u1",
			Email:       "staff@example.ac.jp",
			DisplayName: "教務担当",
			Role:        "staff",
		})
		if err != nil {
			t.Fatalf("createSession()でエラーが発生: %v", err)
		}

		got, err := store.getSession(ctx, "sess-1")
		if err != nil {
			t.Fatalf("getSession()でエラーが発生: %v", err)
		}
		if got.UserID != "u1" || got.Email != "staff@example.ac.jp" || got.Role != "staff" {
			t.Errorf("getSession() = %+v, 作成した値が返るべき", got)
		}
		if got.Expired {
			t.Error("新規セッションは失効していないべき")
		}
	})

	t.Run("存在しないセッションでsql.ErrNoRowsが返ること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)

		_, err := store.getSession(context.Background(), "nonexistent")
		if !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("err = %v, want sql.ErrNoRows", err)
		}
	})

	t.Run("markExpiredで失効フラグが立つこと", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		if err := store.createSession(ctx, &Session{ID: "sess-2", UserID: "u2", Email: "a@example.ac.jp", DisplayName: "A"}); err != nil {
			t.Fatalf("createSession()でエラーが発生: %v", err)
		}
		if err := store.markExpired(ctx, "sess-2"); err != nil {
			t.Fatalf("markExpired()でエラーが発生: %v", err)
		}

		got, err := store.getSession(ctx, "sess-2")
		if err != nil {
			t.Fatalf("getSession()でエラーが発生: %v", err)
		}
		if !got.Expired {
			t.Error("Expired = false, want true")
		}
	})

	t.Run("deleteSessionでレコードが削除されること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		if err := store.createSession(ctx, &Session{ID: "sess-3", UserID: "u3", Email: "b@example.ac.jp", DisplayName: "B"}); err != nil {
			t.Fatalf("createSession()でエラーが発生: %v", err)
		}
		if err := store.deleteSession(ctx, "sess-3"); err != nil {
			t.Fatalf("deleteSession()でエラーが発生: %v", err)
		}

		if _, err := store.getSession(ctx, "sess-3"); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("削除後のgetSession()のerr = %v, want sql.ErrNoRows", err)
		}
	})

	t.Run("touchSessionがエラーなく実行できること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		if err := store.createSession(ctx, &Session{ID: "sess-4", UserID: "u4", Email: "c@example.ac.jp", DisplayName: "C"}); err != nil {
			t.Fatalf("createSession()でエラーが発生: %v", err)
		}
		if err := store.touchSession(ctx, "sess-4"); err != nil {
			t.Errorf("touchSession()でエラーが発生: %v", err)
		}
	})

	t.Run("同一IDの二重作成がエラーになること", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()

		sess := &Session{ID: "sess-5", UserID: "u5", Email: "d@example.ac.jp", DisplayName: "D"}
		if err := store.createSession(ctx, sess); err != nil {
			t.Fatalf("createSession()でエラーが発生: %v", err)
		}
		if err := store.createSession(ctx, sess); err == nil {
			t.Error("二重作成はエラーになるべき")
		}
	})
}
