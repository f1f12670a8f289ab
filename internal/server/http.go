package server

import (
	"context"
	"io"
	"os"
	"time"

	"vacalyser/internal/ai"
	"vacalyser/internal/config"
	"vacalyser/internal/errors"
	"vacalyser/internal/events"
	"vacalyser/internal/session"
	"vacalyser/internal/store"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// AdvanceRequest is the body of POST /sessions/{id}/advance
type AdvanceRequest struct {
	Fields wizard.FormState `json:"fields"`
}

// GenerateRequest is the body of POST /sessions/{id}/generate
type GenerateRequest struct {
	Kind string `json:"kind"`
	types.GenerateOptions
}

// SuggestRequest is the body of POST /sessions/{id}/suggest
type SuggestRequest struct {
	Kind string `json:"kind"`
}

// BulletsResponse is returned by POST /bullets
type BulletsResponse struct {
	Items []string `json:"items"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ModelReporter reports model availability and breaker state for /health and /stats
type ModelReporter interface {
	GetModelInfo(ctx context.Context) map[string]*ai.ModelInfo
	Stats() map[string]any
}

// Deps are the collaborators the HTTP API runs on
type Deps struct {
	Store     store.Store
	Generator session.Generator
	Models    ModelReporter
	Steps     []wizard.Step
	Publisher events.Publisher
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	TLSConfig config.TLSConfig

	// API keys and JWT secret; replaced in place by the Vault secret watcher
	Credentials *Credentials

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	AllowedOrigins []string

	Logger *errors.Logger

	deps     Deps
	sessions *session.Manager
	certs    *certReloader
	out      io.Writer
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	JWTSecret      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
	AllowedOrigins []string
}

// ServerConfigFrom copies the server section of the application config
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	sc := cfg.Server
	return ServerConfig{
		Host:           sc.Host,
		Port:           sc.Port,
		Version:        version,
		TLSConfig:      sc.TLS,
		APIKeys:        sc.APIKeys,
		JWTSecret:      sc.JWTSecret,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		IdleTimeout:    sc.IdleTimeout,
		MaxRequestSize: sc.MaxRequestSize,
		RateLimit:      &sc.RateLimit,
		AllowedOrigins: sc.AllowedOrigins,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Deps, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		Credentials:    NewCredentials(cfg.APIKeys, cfg.JWTSecret),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		deps:           deps,
		out:            os.Stdout,
	}
}

// Close releases the rate limiter's cleanup goroutine
func (s *Server) Close() {
	s.cleanupRateLimiter()
}
