package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"vacalyser/internal/ai"
	"vacalyser/internal/errors"
	"vacalyser/internal/types"
)

const streamWriteTimeout = 10 * time.Second

// StreamMessage is one websocket frame of GET /sessions/{id}/stream
type StreamMessage struct {
	Type     string          `json:"type"` // chunk, done or error
	Data     string          `json:"data,omitempty"`
	Artifact *types.Artifact `json:"artifact,omitempty"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(s.AllowedOrigins) > 0 {
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(s.AllowedOrigins, "*") || slices.Contains(s.AllowedOrigins, origin)
		}
	}
	return u
}

// stream generates an artifact and forwards every fragment as it arrives.
// Query parameters: kind (default job_ad), style, language, audience.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.session.stream")
	defer span.End()

	id := r.PathValue("id")
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = ai.KindJobAd
	}
	opts := types.GenerateOptions{Style: q.Get("style"), Language: q.Get("language"), Audience: q.Get("audience")}
	span.SetAttributes(attribute.String("session.id", id), attribute.String("artifact.kind", kind))

	// unknown sessions are answered over plain HTTP
	if _, err := h.sessions.Get(ctx, id); err != nil {
		h.fail(w, span, err)
		return
	}

	conn, err := h.server.upgrader().Upgrade(w, r, nil)
	if err != nil {
		span.RecordError(err)
		h.server.Logger.Debug("Websocket upgrade failed", "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	// the read loop only notices a client going away
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(msg StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(msg)
	}

	chunks := 0
	artifact, err := h.sessions.Generate(ctx, id, kind, opts, func(fragment string) {
		chunks++
		if err := send(StreamMessage{Type: "chunk", Data: fragment}); err != nil {
			cancel()
		}
	})
	span.SetAttributes(attribute.Int("stream.chunks", chunks))

	closeCode, closeText := websocket.CloseNormalClosure, "done"
	if err != nil {
		span.RecordError(err)
		msg := StreamMessage{Type: "error", Message: err.Error()}
		if appErr, ok := errors.As(err); ok {
			msg.Code, msg.Message = appErr.Code, appErr.Message
		}
		_ = send(msg)
		closeCode, closeText = websocket.CloseInternalServerErr, "generation failed"
	} else {
		_ = send(StreamMessage{Type: "done", Artifact: artifact})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, closeText),
		time.Now().Add(time.Second))
	_ = conn.Close()
	<-readDone
}
