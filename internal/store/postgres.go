package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vacalyser_sessions (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vacalyser_sessions_updated ON vacalyser_sessions(updated_at);
`

// PostgresStore persists sessions in PostgreSQL through a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and migrates the sessions table
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, storeFailed("open", fmt.Errorf("empty postgres dsn"))
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storeFailed("open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeFailed("ping", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storeFailed("migrate", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Create(ctx context.Context, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return storeFailed("encode", err)
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO vacalyser_sessions (id, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		sess.ID, data, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return storeFailed("create", err)
	}
	if tag.RowsAffected() == 0 {
		return alreadyExists(sess.ID)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		data             []byte
		created, updated time.Time
	)
	err := p.pool.QueryRow(ctx,
		`SELECT data, created_at, updated_at FROM vacalyser_sessions WHERE id = $1`, id).
		Scan(&data, &created, &updated)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeFailed("get", err)
	}
	return decodeSession(id, data, created, updated)
}

func (p *PostgresStore) Save(ctx context.Context, sess *Session) error {
	data, err := encodeSession(sess)
	if err != nil {
		return storeFailed("encode", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE vacalyser_sessions SET data = $1, updated_at = $2 WHERE id = $3`,
		data, sess.UpdatedAt, sess.ID)
	if err != nil {
		return storeFailed("save", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(sess.ID)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM vacalyser_sessions WHERE id = $1`, id)
	if err != nil {
		return storeFailed("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (p *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM vacalyser_sessions WHERE updated_at < $1`, olderThan)
	if err != nil {
		return 0, storeFailed("purge", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vacalyser_sessions`).Scan(&n); err != nil {
		return 0, storeFailed("count", err)
	}
	return n, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
