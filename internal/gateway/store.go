package gateway

import (
	"context"
	"database/sql"
	"fmt"
)

// Session はブラウザセッションの永続化レコード。
// バックエンドから取得した認証済みユーザーの情報をキャッシュとして持つ。
type Session struct {
	// ID はセッションの一意識別子。セッショントークンに埋め込まれる。
	ID string
	// UserID はバックエンド上のユーザー識別子。
	UserID string
	// Email はユーザーのメールアドレス。
	Email string
	// DisplayName はユーザーの表示名。
	DisplayName string
	// Role はユーザーのロール。
	Role string
	// Expired はバックエンドセッションが回復不能に失効したかどうか。
	Expired bool
}

// sessionStore はセッションレコードのSQLiteストア。
type sessionStore struct {
	db *sql.DB
}

// newSessionStore は新しいセッションストアを生成する。
func newSessionStore(db *sql.DB) *sessionStore {
	return &sessionStore{db: db}
}

// createSession はセッションレコードを作成する。
func (s *sessionStore) createSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, display_name, role)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.Email, sess.DisplayName, sess.Role)
	if err != nil {
		return fmt.Errorf("セッションの作成に失敗: %w", err)
	}
	return nil
}

// getSession はIDでセッションレコードを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (s *sessionStore) getSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, display_name, role, expired
		FROM sessions WHERE id = ?
	`, id)

	var sess Session
	var expired int
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Email, &sess.DisplayName, &sess.Role, &expired); err != nil {
		return nil, err
	}
	sess.Expired = expired != 0
	return &sess, nil
}

// markExpired はセッションを失効扱いにする。
// バックエンドセッションが回復不能になった際に呼ばれる。
func (s *sessionStore) markExpired(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET expired = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("セッションの失効記録に失敗: %w", err)
	}
	return nil
}

// touchSession は最終アクセス時刻を更新する。
func (s *sessionStore) touchSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen_at = datetime('now') WHERE id = ?`, id); err != nil {
		return fmt.Errorf("最終アクセス時刻の更新に失敗: %w", err)
	}
	return nil
}

// deleteSession はセッションレコードを削除する。
func (s *sessionStore) deleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}
	return nil
}
