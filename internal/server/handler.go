package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"vacalyser/internal/errors"
	"vacalyser/internal/parse"
	"vacalyser/internal/session"
)

// handlers serves the session API
type handlers struct {
	server   *Server
	sessions *session.Manager
	tracer   oteltrace.Tracer
}

func (h *handlers) steps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session.DescribeSteps(h.sessions.Steps()))
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.session.create")
	defer span.End()

	view, err := h.sessions.Create(ctx)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("session.id", view.ID))
	w.Header().Set("Location", "/sessions/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) advance(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.session.advance")
	defer span.End()
	id := r.PathValue("id")
	span.SetAttributes(attribute.String("session.id", id))

	var req AdvanceRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.sessions.Advance(ctx, id, req.Fields)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("wizard.step", view.Step.Name))
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) retreat(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Retreat(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.session.generate")
	defer span.End()
	id := r.PathValue("id")

	var req GenerateRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.String("artifact.kind", req.Kind),
		attribute.String("artifact.style", req.Style),
		attribute.String("artifact.language", req.Language),
	)

	artifact, err := h.sessions.Generate(ctx, id, req.Kind, req.GenerateOptions, nil)
	if err != nil {
		h.fail(w, span, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("response.content_length", len(artifact.Content)),
	)
	writeJSON(w, http.StatusOK, artifact)
}

func (h *handlers) suggest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "api.session.suggest")
	defer span.End()
	id := r.PathValue("id")

	var req SuggestRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("session.id", id), attribute.String("suggestion.kind", req.Kind))

	out, err := h.sessions.Suggest(ctx, id, req.Kind)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.Int("suggestion.count", len(out.Items)))
	writeJSON(w, http.StatusOK, out)
}

// artifact downloads a generated document as a text file
func (h *handlers) artifact(w http.ResponseWriter, r *http.Request) {
	a, err := h.sessions.Artifact(r.Context(), r.PathValue("id"), r.PathValue("kind"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	_, _ = io.WriteString(w, a.Content)
}

// bullets extracts bullet items from a text/plain body or {"text": ...}
func (h *handlers) bullets(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	text := string(body)
	if mediaType(r) == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeErrorResponse(w, "Invalid request body", fmt.Sprintf("failed to parse JSON: %v", err), http.StatusBadRequest)
			return
		}
		text = req.Text
	}
	writeJSON(w, http.StatusOK, BulletsResponse{Items: parse.CollectBullets(text, 0)})
}

// fail writes err as a JSON error, choosing the status from the error code
func (h *handlers) fail(w http.ResponseWriter, span oteltrace.Span, err error) {
	if span != nil {
		span.RecordError(err)
	}
	appErr, ok := errors.As(err)
	if !ok {
		h.server.Logger.LogError(err, "Request failed")
		writeErrorResponse(w, "Internal error", err.Error(), http.StatusInternalServerError)
		return
	}

	status := appErr.HTTPStatus()
	if span != nil {
		span.SetAttributes(attribute.String("error.type", string(appErr.Type)), attribute.String("error.code", appErr.Code))
	}
	if status >= http.StatusInternalServerError {
		h.server.Logger.LogError(err, "Request failed", "code", appErr.Code)
	}

	resp := ErrorResponse{
		Error:   strings.ToLower(strings.ReplaceAll(appErr.Code, "_", " ")),
		Message: appErr.Message,
		Code:    appErr.Code,
	}
	if len(appErr.Context) > 0 {
		resp.Details = appErr.Context
	}
	writeJSON(w, status, resp)
}
