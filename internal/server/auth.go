package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"

	"vacalyser/internal/observability"
)

// Credentials holds the accepted API keys and the HS256 secret for bearer
// tokens. Both can be replaced while the server runs.
type Credentials struct {
	mu        sync.RWMutex
	apiKeys   map[string]bool
	jwtSecret []byte
}

// NewCredentials builds a credential set; empty keys are ignored
func NewCredentials(apiKeys []string, jwtSecret string) *Credentials {
	c := &Credentials{}
	c.SetAPIKeys(apiKeys)
	c.SetJWTSecret(jwtSecret)
	return c
}

// SetAPIKeys replaces the accepted API keys
func (c *Credentials) SetAPIKeys(keys []string) {
	// Convert API keys slice to map for O(1) lookup
	m := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			m[key] = true
		}
	}
	c.mu.Lock()
	c.apiKeys = m
	c.mu.Unlock()
}

// SetJWTSecret replaces the token signing secret; empty disables JWT auth
func (c *Credentials) SetJWTSecret(secret string) {
	c.mu.Lock()
	if secret == "" {
		c.jwtSecret = nil
	} else {
		c.jwtSecret = []byte(secret)
	}
	c.mu.Unlock()
}

// Enabled reports whether any credential is configured
func (c *Credentials) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.apiKeys) > 0 || len(c.jwtSecret) > 0
}

// KeyCount reports how many API keys are accepted
func (c *Credentials) KeyCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.apiKeys)
}

// ValidAPIKey reports whether key is accepted
func (c *Credentials) ValidAPIKey(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKeys[key]
}

// ValidateToken checks an HS256 bearer token and returns its subject
func (c *Credentials) ValidateToken(tokenString string) (string, error) {
	c.mu.RLock()
	secret := c.jwtSecret
	c.mu.RUnlock()
	if len(secret) == 0 {
		return "", fmt.Errorf("bearer tokens are not accepted")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	return claims.Subject, nil
}

// requestCredential returns the API key or token a request presents
func requestCredential(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	// browsers cannot set headers on websocket upgrades
	if r.URL.Path != "" && strings.HasSuffix(r.URL.Path, "/stream") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// authMiddleware accepts an API key (X-API-Key or Bearer) or an HS256 JWT
func (s *Server) authMiddleware(metrics *observability.Metrics) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// Skip authentication if no credentials are configured
			if !s.Credentials.Enabled() {
				next(w, r)
				return
			}

			credential := requestCredential(r)
			if credential == "" {
				s.Logger.Info("Authentication failed: missing credentials",
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				metrics.RecordBusinessMetric(r.Context(), observability.MetricAuthFailure, false,
					attribute.String("reason", "missing"))
				writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
				return
			}

			if s.Credentials.ValidAPIKey(credential) {
				s.Logger.Debug("API authentication successful",
					"endpoint", r.URL.Path,
					"api_key_prefix", maskAPIKey(credential))
				next(w, r)
				return
			}

			subject, err := s.Credentials.ValidateToken(credential)
			if err != nil {
				s.Logger.Info("Authentication failed: invalid credentials",
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r),
					"api_key_prefix", maskAPIKey(credential))
				metrics.RecordBusinessMetric(r.Context(), observability.MetricAuthFailure, false,
					attribute.String("reason", "invalid"))
				writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
				return
			}

			s.Logger.Debug("Token authentication successful", "endpoint", r.URL.Path, "subject", subject)
			next(w, r)
		}
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
