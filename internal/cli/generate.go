package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"vacalyser/internal/ai"
	"vacalyser/internal/common"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

var generateCmd = &cobra.Command{
	Use:   "generate [answers-file]",
	Short: "Generate a job ad, interview guide, onboarding plan or summary",
	Long: `Generate a document from saved need-analysis answers.
The answers file is YAML or JSON keyed by field name, as written by
"vacalyser wizard --save-answers". Lists are arrays, salary ranges are
objects with min and max.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := common.ValidateKind(generateConfig.kind, ai.ArtifactKinds); err != nil {
			return err
		}
		return resolveFormat(cmd, &generateConfig.CommandConfig)
	},
	RunE: runGenerate,
}

var generateConfig struct {
	common.CommandConfig
	kind    string
	options types.GenerateOptions
	stream  bool
}

func init() {
	addOutputFlags(generateCmd, &generateConfig.CommandConfig)
	generateCmd.Flags().StringVar(&generateConfig.kind, "kind", ai.KindJobAd, "Document kind: job_ad, interview_prep, onboarding or summary")
	generateCmd.Flags().StringVar(&generateConfig.options.Style, "style", "", "Writing style, e.g. professional or casual")
	generateCmd.Flags().StringVar(&generateConfig.options.Language, "language", "", "Output language, e.g. English or German")
	generateCmd.Flags().StringVar(&generateConfig.options.Audience, "audience", "", "Readers of an interview guide, e.g. HR or the hiring team")
	generateCmd.Flags().BoolVar(&generateConfig.stream, "stream", false, "Print text to stderr while it is generated")

	_ = generateCmd.RegisterFlagCompletionFunc("kind", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return ai.ArtifactKinds, cobra.ShellCompDirectiveNoFileComp
	})
}

func runGenerate(cmd *cobra.Command, args []string) error {
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

	kind, opts := generateConfig.kind, generateConfig.options
	var onChunk func(string)
	if generateConfig.stream {
		stderr := cmd.ErrOrStderr()
		onChunk = func(chunk string) { fmt.Fprint(stderr, chunk) }
	}

	createInput := func(files []common.InputFile) (wizard.FormState, error) {
		return common.ParseAnswers(files[0])
	}

	logDetails := func(form wizard.FormState, cc common.CommandConfig) {
		for _, step := range steps {
			if missing := form.Missing(step.Required); len(missing) > 0 {
				logger.Warn("Answers are incomplete", "step", step.Name, "missing", missing)
			}
		}
		logger.Info("Starting generation",
			"kind", kind,
			"fields", len(form),
			"output_format", cc.OutputFormat)
	}

	operation := func(ctx context.Context, form wizard.FormState) (*types.Artifact, *types.TokenUsage, error) {
		artifact, err := svc.Generate(ctx, kind, form, opts, onChunk)
		if err != nil {
			return nil, nil, err
		}
		if onChunk != nil {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
		return artifact, artifact.Usage, nil
	}

	if err := common.RunAICommand(cmd.Context(), logger, generateConfig.CommandConfig, args,
		createInput, operation, logDetails); err != nil {
		return fmt.Errorf("failed to generate %s: %w", kind, err)
	}
	logger.Info("Generation completed successfully", "kind", kind)
	return nil
}
