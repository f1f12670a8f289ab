package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

// Event types published on wizard and generation activity
const (
	TypeSessionCreated    = "session.created"
	TypeSessionDeleted    = "session.deleted"
	TypeWizardAdvanced    = "wizard.advanced"
	TypeWizardRetreated   = "wizard.retreated"
	TypeWizardReset       = "wizard.reset"
	TypeArtifactGenerated = "artifact.generated"
)

// Event is one notification about a session
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Step      string         `json:"step,omitempty"`
	Kind      string         `json:"kind,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Time      time.Time      `json:"time"`
}

// Publisher delivers events. Publishing is fire-and-forget: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New returns a NATS publisher when events are enabled and a no-op otherwise
func New(cfg config.EventsConfig, logger *errors.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(cfg, logger)
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// NATSPublisher publishes events as JSON on "<prefix>.<type>" subjects
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	owned  bool
	logger *errors.Logger
}

// NewNATSPublisher connects to cfg.URL
func NewNATSPublisher(cfg config.EventsConfig, logger *errors.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	opts := []nats.Option{
		nats.Name("vacalyser"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnectTimeout))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeNetworkTimeout, "failed to connect to NATS", err).
			WithContext("url", cfg.URL)
	}
	logger.Info("Connected to NATS", "url", conn.ConnectedUrl(), "subject_prefix", cfg.SubjectPrefix)

	p := NewNATSPublisherWithConn(conn, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisherWithConn publishes on an existing connection, which the
// caller keeps ownership of
func NewNATSPublisherWithConn(conn *nats.Conn, prefix string, logger *errors.Logger) *NATSPublisher {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	if prefix == "" {
		prefix = "vacalyser"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat, "failed to encode event", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		return errors.NewNetworkError(errors.ErrCodeNetworkTimeout, "failed to publish event", err).
			WithContext("type", ev.Type)
	}
	p.logger.Debug("Published event", "type", ev.Type, "session_id", ev.SessionID)
	return nil
}

// Close drains the connection if the publisher opened it
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.conn.Drain()
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the published event types in order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
