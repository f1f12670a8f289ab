package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"vacalyser/internal/ai"
	"vacalyser/internal/common"
	"vacalyser/internal/config"
	"vacalyser/internal/errors"
	"vacalyser/internal/wizard"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "vacalyser",
	Short: "Recruitment need analysis with AI-generated job ads",
	Long: `Vacalyser walks hiring managers through a recruitment need analysis:
company, department, role, tasks, skills, benefits and recruitment process.
From the collected answers it generates job ads, interview guides and
onboarding plans with a language model, and suggests skills, benefits,
tasks and recruitment steps for a job title.`,
	SilenceUsage: true,
}

// Execute runs the command line with cfg and logger available to every command
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	return fang.Execute(ctx, rootCmd, fang.WithVersion(Version))
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// loadSteps returns the configured step catalog or the built-in one
func loadSteps(cfg *config.Config) ([]wizard.Step, error) {
	if cfg.Wizard.StepsFile == "" {
		return wizard.DefaultSteps(), nil
	}
	steps, err := wizard.LoadSteps(cfg.Wizard.StepsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load wizard steps: %w", err)
	}
	return steps, nil
}

// newService creates the AI service over the configured catalog
func newService(cfg *config.Config, steps []wizard.Step, logger *errors.Logger) (*ai.Service, error) {
	svc, err := ai.NewService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI service: %w", err)
	}
	return svc.WithSteps(steps), nil
}

// addOutputFlags registers --output and --format with completion from the config
func addOutputFlags(cmd *cobra.Command, cc *common.CommandConfig) {
	cmd.Flags().StringVarP(&cc.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cc.OutputFormat, "format", "", "Output format: text, markdown, json or yaml")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveFormat applies the default format and validates it
func resolveFormat(cmd *cobra.Command, cc *common.CommandConfig) error {
	cfg := getConfigFromContext(cmd.Context())
	if cc.OutputFormat == "" {
		cc.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(cc.OutputFormat, cfg.App.SupportedFormats)
}

func init() {
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
