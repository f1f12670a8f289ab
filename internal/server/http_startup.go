package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vacalyser/internal/config"
	"vacalyser/internal/observability"
)

// Start runs the HTTP server until ctx is cancelled or SIGINT/SIGTERM arrives
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)

	httpServer, err := s.setupHTTPServer(om)
	if err != nil {
		return err
	}
	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return s.serve(ctx, httpServer, listener, om.GetMetrics())
}

// serve runs the listener next to the session sweeper and the watchers and
// shuts all of them down together
func (s *Server) serve(ctx context.Context, httpServer *http.Server, listener net.Listener, metrics *observability.Metrics) error {
	defer s.cleanupRateLimiter()

	stopWatchers, err := s.startWatchers(metrics)
	if err != nil {
		_ = listener.Close()
		return err
	}
	defer stopWatchers()

	if s.AppConfig != nil && s.AppConfig.Store.TTL > 0 {
		sweeper := s.sessions.NewSweeper(s.AppConfig.Store.TTL, s.AppConfig.Store.SweepInterval)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	s.displayServerInfo()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Logger.Info("Starting HTTP server",
			"address", listener.Addr().String(),
			"tls_enabled", httpServer.TLSConfig != nil)

		var err error
		if httpServer.TLSConfig != nil {
			// certificates come from TLSConfig.GetCertificate
			err = httpServer.ServeTLS(listener, "", "")
		} else {
			err = httpServer.Serve(listener)
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("Shutting down HTTP server...")
		return s.performGracefulShutdown(httpServer)
	})
	return g.Wait()
}

// startWatchers starts the file watcher for certificates and prompt files and
// the Vault API key watcher, as configured
func (s *Server) startWatchers(metrics *observability.Metrics) (func(), error) {
	var stops []func() error

	if s.TLSConfig.AutoReload.Enabled {
		if files := s.watchedFiles(); len(files) > 0 {
			fw := NewFileWatcher(files, s.TLSConfig.AutoReload.DebounceDelay, s.onFilesChanged(metrics), s.Logger)
			if err := fw.Start(); err != nil {
				return nil, fmt.Errorf("failed to start file watcher: %w", err)
			}
			stops = append(stops, fw.Stop)
		}
	}

	vaultWatcher, err := s.newVaultWatcher()
	if err != nil {
		for _, stop := range stops {
			_ = stop()
		}
		return nil, err
	}
	if vaultWatcher != nil {
		if err := vaultWatcher.Start(); err != nil {
			for _, stop := range stops {
				_ = stop()
			}
			return nil, err
		}
		stops = append(stops, vaultWatcher.Stop)
	}

	return func() {
		for _, stop := range stops {
			if err := stop(); err != nil {
				s.Logger.LogError(err, "Failed to stop watcher")
			}
		}
	}, nil
}

// newVaultWatcher returns a watcher rotating API keys, or nil when not configured
func (s *Server) newVaultWatcher() (*VaultWatcher, error) {
	if s.AppConfig == nil || !s.AppConfig.Server.SecretWatcher.Enabled || !s.AppConfig.Vault.Enabled {
		return nil, nil
	}
	path := s.AppConfig.Vault.Secrets.APIKeys
	if path == "" {
		return nil, nil
	}

	vc, err := config.NewVaultClient(s.AppConfig.Vault, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Vault client: %w", err)
	}
	return NewVaultWatcher(vc, path, s.AppConfig.Server.SecretWatcher.PollInterval, s.rotateAPIKeys, s.Logger), nil
}

// rotateAPIKeys swaps the accepted keys; a bad secret keeps the old ones
func (s *Server) rotateAPIKeys(keys []string, err error) {
	if err != nil {
		s.Logger.LogError(err, "Ignoring rotated API keys")
		return
	}
	s.Credentials.SetAPIKeys(keys)
	s.Logger.Info("API keys rotated", "count", len(keys))
}

// initializeObservability sets up observability components
func (s *Server) initializeObservability() (*observability.ObservabilityManager, error) {
	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(s.AppConfig, s.Version), s.AppConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

// shutdownObservability handles observability cleanup
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) (*http.Server, error) {
	handler, err := s.Handler(om)
	if err != nil {
		return nil, err
	}

	return &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      handler,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}, nil
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
}
