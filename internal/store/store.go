package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// Session is one persisted wizard run with the artifacts generated from it
type Session struct {
	ID        string                    `json:"id"`
	Snapshot  wizard.Snapshot           `json:"snapshot"`
	Artifacts map[string]types.Artifact `json:"artifacts,omitempty"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// Clone returns a copy that shares no maps with s
func (s *Session) Clone() *Session {
	out := *s
	out.Snapshot = wizard.Snapshot{Cursor: s.Snapshot.Cursor, Form: s.Snapshot.Form.Clone()}
	out.Artifacts = maps.Clone(s.Artifacts)
	return &out
}

// Store persists sessions. Implementations are safe for concurrent use and
// return copies, so callers may mutate what they get.
type Store interface {
	// Create inserts a new session and fails with a conflict if the id exists
	Create(ctx context.Context, s *Session) error
	// Get returns SESSION_NOT_FOUND for unknown ids
	Get(ctx context.Context, id string) (*Session, error)
	// Save overwrites an existing session
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Purge deletes sessions last updated before olderThan and returns how many
	Purge(ctx context.Context, olderThan time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// New opens the backend named by cfg.Driver
func New(ctx context.Context, cfg config.StoreConfig, logger *errors.Logger) (Store, error) {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	switch cfg.Driver {
	case "", "memory":
		logger.Info("Using in-memory session store")
		return NewMemoryStore(), nil
	case "sqlite":
		logger.Info("Using SQLite session store", "dsn", cfg.DSN)
		return NewSQLiteStore(ctx, cfg.DSN)
	case "postgres":
		logger.Info("Using PostgreSQL session store")
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported store driver: %s", cfg.Driver), nil)
	}
}

func notFound(id string) error {
	return errors.NewNotFoundError(errors.ErrCodeSessionNotFound, "session not found", nil).
		WithContext("session_id", id)
}

func alreadyExists(id string) error {
	return errors.NewConflictError(errors.ErrCodeStoreFailed, "session already exists", nil).
		WithContext("session_id", id)
}

func storeFailed(op string, err error) error {
	return errors.NewIOError(errors.ErrCodeStoreFailed, fmt.Sprintf("session store %s failed", op), err)
}

// sessionRecord is the serialized payload of the SQL backends
type sessionRecord struct {
	Snapshot  wizard.Snapshot           `json:"snapshot"`
	Artifacts map[string]types.Artifact `json:"artifacts,omitempty"`
}

func encodeSession(s *Session) ([]byte, error) {
	return json.Marshal(sessionRecord{Snapshot: s.Snapshot, Artifacts: s.Artifacts})
}

func decodeSession(id string, data []byte, created, updated time.Time) (*Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storeFailed("decode", err)
	}
	if rec.Snapshot.Form == nil {
		rec.Snapshot.Form = wizard.FormState{}
	}
	return &Session{
		ID:        id,
		Snapshot:  rec.Snapshot,
		Artifacts: rec.Artifacts,
		CreatedAt: created.UTC(),
		UpdatedAt: updated.UTC(),
	}, nil
}
