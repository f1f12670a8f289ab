package cli

import (
	"github.com/spf13/cobra"

	"vacalyser/internal/toolserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the vacalyser tools over MCP on stdin/stdout",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the tools
parse_bullet_points, list_steps, suggest and generate_job_ad. Logs go to
stderr so they do not interfere with the protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		logger := getLoggerFromContext(cmd.Context())

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

		return toolserver.New(svc, steps, Version, logger).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}
