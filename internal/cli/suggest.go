package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vacalyser/internal/ai"
	"vacalyser/internal/common"
	"vacalyser/internal/types"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [kind]",
	Short: "Suggest skills, benefits, tasks or recruitment steps for a role",
	Long: `Ask the language model for a bullet list for a job title and print the
parsed items. Kind is one of skills, benefits, recruitment_steps or tasks.
Skills are also grouped into technical, soft and other.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: ai.SuggestionKinds,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := common.ValidateKind(args[0], ai.SuggestionKinds); err != nil {
			return err
		}
		if err := common.ValidateJobTitle(suggestConfig.role); err != nil {
			return err
		}
		return resolveFormat(cmd, &suggestConfig.CommandConfig)
	},
	RunE: runSuggest,
}

var suggestConfig struct {
	common.CommandConfig
	role string
}

func init() {
	addOutputFlags(suggestCmd, &suggestConfig.CommandConfig)
	suggestCmd.Flags().StringVar(&suggestConfig.role, "role", "", "Job title to suggest for (required)")
	_ = suggestCmd.MarkFlagRequired("role")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	svc, err := ai.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	kind, role := args[0], suggestConfig.role
	operation := func(ctx context.Context, _ struct{}) (*types.Suggestions, *types.TokenUsage, error) {
		s, err := svc.Suggest(ctx, kind, role)
		return s, nil, err
	}
	logDetails := func(_ struct{}, cc common.CommandConfig) {
		logger.Info("Requesting suggestions", "kind", kind, "role", role, "output_format", cc.OutputFormat)
	}

	if err := common.RunAICommand(cmd.Context(), logger, suggestConfig.CommandConfig, nil,
		func([]common.InputFile) (struct{}, error) { return struct{}{}, nil },
		operation, logDetails); err != nil {
		return fmt.Errorf("failed to suggest %s: %w", kind, err)
	}
	return nil
}
