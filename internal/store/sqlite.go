package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// SQLiteStore persists sessions in a SQLite file through the pure Go driver.
// Timestamps are stored as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and creates) the database at dsn
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, storeFailed("open", fmt.Errorf("empty sqlite dsn"))
	}
	if path := sqlitePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, storeFailed("open", fmt.Errorf("failed to create directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeFailed("open", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, storeFailed("migrate", err)
	}
	return &SQLiteStore{db: db}, nil
}

// sqlitePath returns the file behind a dsn, or "" for in-memory databases
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return storeFailed("encode", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		sess.ID, string(data), sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano())
	if err != nil {
		return storeFailed("create", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return alreadyExists(sess.ID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		data             string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&data, &created, &updated)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeFailed("get", err)
	}
	return decodeSession(id, []byte(data), time.Unix(0, created), time.Unix(0, updated))
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return storeFailed("encode", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET data = ?, updated_at = ? WHERE id = ?`,
		string(data), sess.UpdatedAt.UnixNano(), sess.ID)
	if err != nil {
		return storeFailed("save", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sess.ID)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return storeFailed("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, storeFailed("purge", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, storeFailed("count", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
