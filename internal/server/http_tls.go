package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"vacalyser/internal/config"
	"vacalyser/internal/observability"
)

// certReloader serves the current key pair and swaps it on reload
type certReloader struct {
	mu      sync.RWMutex
	cert    *tls.Certificate
	leaf    *x509.Certificate
	load    func() (tls.Certificate, error)
	reloads atomic.Int64
}

func newCertReloader(load func() (tls.Certificate, error)) (*certReloader, error) {
	cr := &certReloader{load: load}
	if err := cr.Reload(); err != nil {
		return nil, err
	}
	cr.reloads.Store(0)
	return cr, nil
}

// Reload reads the key pair again; the old pair stays in use on failure
func (cr *certReloader) Reload() error {
	cert, err := cr.load()
	if err != nil {
		return err
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse server certificate: %w", err)
	}
	cr.mu.Lock()
	cr.cert, cr.leaf = &cert, leaf
	cr.mu.Unlock()
	cr.reloads.Add(1)
	return nil
}

// GetCertificate implements tls.Config.GetCertificate
func (cr *certReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.cert, nil
}

// TimeToExpiry reports how long the current certificate stays valid
func (cr *certReloader) TimeToExpiry() (time.Duration, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if cr.leaf == nil {
		return 0, fmt.Errorf("no certificate loaded")
	}
	return time.Until(cr.leaf.NotAfter), nil
}

func (cr *certReloader) ReloadCount() int64 {
	return cr.reloads.Load()
}

// configureTLS sets up TLS configuration based on the mode
func (s *Server) configureTLS(httpServer *http.Server) error {
	switch s.TLSConfig.Mode {
	case "server":
		fmt.Fprintf(s.out, "Starting server with HTTPS on https://%s\n", httpServer.Addr)
		tlsConfig, err := s.buildTLSConfig()
		if err != nil {
			return fmt.Errorf("failed to set up TLS: %w", err)
		}
		httpServer.TLSConfig = tlsConfig
		return nil
	case "disabled", "":
		fmt.Fprintf(s.out, "Starting server on http://%s\n", httpServer.Addr)
		fmt.Fprintln(s.out, "TLS mode: Disabled (HTTP only)")
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}
}

// buildTLSConfig creates the TLS configuration
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	certs, err := newCertReloader(s.loadServerCertificate)
	if err != nil {
		return nil, err
	}
	s.certs = certs

	tlsConfig := &tls.Config{
		GetCertificate: certs.GetCertificate,
		ClientAuth:     tls.NoClientCert,
	}
	switch s.TLSConfig.MinVersion {
	case "1.3":
		tlsConfig.MinVersion = tls.VersionTLS13
	default:
		tlsConfig.MinVersion = tls.VersionTLS12
	}
	return tlsConfig, nil
}

// loadServerCertificate loads the server certificate from content or files
func (s *Server) loadServerCertificate() (tls.Certificate, error) {
	if s.TLSConfig.CertContent != "" && s.TLSConfig.KeyContent != "" {
		cert, err := tls.X509KeyPair([]byte(s.TLSConfig.CertContent), []byte(s.TLSConfig.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
		return cert, nil
	}

	if s.TLSConfig.CertFile != "" && s.TLSConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
		return cert, nil
	}

	return tls.Certificate{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
}

// watchedFiles lists what the file watcher follows: certificate files when
// TLS reads them from disk, and every prompt template file
func (s *Server) watchedFiles() []string {
	var files []string
	if s.certs != nil && s.TLSConfig.CertContent == "" {
		files = append(files, s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
	}
	if s.AppConfig != nil && s.AppConfig.Templates != nil {
		files = append(files, s.AppConfig.Templates.Files()...)
	}
	return files
}

// onFilesChanged reloads certificates and prompt templates
func (s *Server) onFilesChanged(metrics *observability.Metrics) func([]string) {
	return func(changed []string) {
		certChanged := false
		for _, file := range changed {
			if isCertFile(s.TLSConfig, file) {
				certChanged = true
				continue
			}
			if s.AppConfig == nil || s.AppConfig.Templates == nil {
				continue
			}
			if err := s.AppConfig.Templates.ReloadFile(file); err != nil {
				s.Logger.LogError(err, "Failed to reload prompt file", "file", file)
				continue
			}
			s.Logger.Info("Prompt file reloaded", "file", file)
		}

		if certChanged && s.certs != nil {
			err := s.certs.Reload()
			if err != nil {
				s.Logger.LogError(err, "Failed to reload TLS certificates")
			} else {
				s.Logger.Info("TLS certificates reloaded successfully")
			}
			metrics.RecordBusinessMetric(context.Background(), observability.MetricCertReload, err == nil)
		}
	}
}

func isCertFile(tlsCfg config.TLSConfig, file string) bool {
	return sameFile(file, tlsCfg.CertFile) || sameFile(file, tlsCfg.KeyFile)
}

func sameFile(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
