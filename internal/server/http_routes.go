package server

import (
	"net/http"

	"vacalyser/internal/observability"
	"vacalyser/internal/session"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) (*http.ServeMux, error) {
	metrics := om.GetMetrics()
	sessions, err := session.NewManager(s.deps.Store, s.deps.Generator, session.Options{
		Steps:     s.deps.Steps,
		Publisher: s.deps.Publisher,
		Metrics:   metrics,
		Logger:    s.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.sessions = sessions

	mux := http.NewServeMux()

	rateLimit := s.rateLimitMiddleware(metrics)
	auth := s.authMiddleware(metrics)
	sizeLimit := s.requestSizeLimitMiddleware()
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimit(auth(sizeLimit(h)))
	}
	h := &handlers{server: s, sessions: sessions, tracer: om.Tracer("vacalyser.api")}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)
	mux.HandleFunc("GET /steps", h.steps)

	mux.HandleFunc("POST /sessions", protect(h.createSession))
	mux.HandleFunc("GET /sessions/{id}", protect(h.getSession))
	mux.HandleFunc("DELETE /sessions/{id}", protect(h.deleteSession))
	mux.HandleFunc("POST /sessions/{id}/advance", protect(h.advance))
	mux.HandleFunc("POST /sessions/{id}/retreat", protect(h.retreat))
	mux.HandleFunc("POST /sessions/{id}/reset", protect(h.reset))
	mux.HandleFunc("POST /sessions/{id}/generate", protect(h.generate))
	mux.HandleFunc("POST /sessions/{id}/suggest", protect(h.suggest))
	mux.HandleFunc("GET /sessions/{id}/artifacts/{kind}", protect(h.artifact))
	mux.HandleFunc("GET /sessions/{id}/stream", rateLimit(auth(h.stream)))
	mux.HandleFunc("POST /bullets", protect(h.bullets))

	if ph := om.PrometheusHandler(); ph != nil {
		endpoint := s.AppConfig.Observability.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		mux.Handle("GET "+endpoint, ph)
	}

	return mux, nil
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}
			next(w, r)
		}
	}
}

// Handler builds the complete HTTP handler without starting a listener
func (s *Server) Handler(om *observability.ObservabilityManager) (http.Handler, error) {
	mux, err := s.setupRoutes(om)
	if err != nil {
		return nil, err
	}
	return om.HTTPMiddleware()(mux), nil
}
