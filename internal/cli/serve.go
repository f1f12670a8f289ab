package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vacalyser/internal/events"
	"vacalyser/internal/server"
	"vacalyser/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for wizard sessions",
	Long: `Start an HTTP server that runs need-analysis wizards as sessions.

Available endpoints:
- GET /steps: Wizard step catalog
- POST /sessions: Start a session; GET/DELETE /sessions/{id}
- POST /sessions/{id}/advance, /retreat, /reset: Move through the wizard
- POST /sessions/{id}/generate, /suggest: Generate documents and suggestions
- GET /sessions/{id}/artifacts/{kind}: Download a generated document
- GET /sessions/{id}/stream: Stream a generation over websocket
- POST /bullets: Extract bullet points from text
- GET /health, GET /stats: Health check and server statistics

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	cmd.Flags().String("host", "", "Host to bind to (default from config)")
	cmd.Flags().String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	cmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	cmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	cmd.Flags().String("store", "", "Session store: memory, sqlite, postgres (overrides config)")
	cmd.Flags().String("dsn", "", "Session store DSN (overrides config)")
}

// applyServeFlags copies the flags the user set over the loaded configuration
func applyServeFlags(cmd *cobra.Command) {
	cfg := getConfigFromContext(cmd.Context())
	targets := map[string]*string{
		"port":      &cfg.Server.Port,
		"host":      &cfg.Server.Host,
		"tls-mode":  &cfg.Server.TLS.Mode,
		"cert-file": &cfg.Server.TLS.CertFile,
		"key-file":  &cfg.Server.TLS.KeyFile,
		"store":     &cfg.Store.Driver,
		"dsn":       &cfg.Store.DSN,
	}
	for name, target := range targets {
		if cmd.Flags().Changed(name) {
			*target, _ = cmd.Flags().GetString(name)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeFlags(cmd)
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	ctx := cmd.Context()

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	steps, err := loadSteps(cfg)
	if err != nil {
		return err
	}
	svc, err := newService(cfg, steps, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	st, err := store.New(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.LogError(err, "Failed to close session store")
		}
	}()

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.LogError(err, "Failed to close event publisher")
		}
	}()

	srv := server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), server.Deps{
		Store:     st,
		Generator: svc,
		Models:    svc,
		Steps:     steps,
		Publisher: publisher,
	}, logger)
	defer srv.Close()

	return srv.Start(ctx)
}
