package cli

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"vacalyser/internal/ai"
	"vacalyser/internal/common"
	"vacalyser/internal/errors"
	"vacalyser/internal/tui"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Run the need-analysis wizard in the terminal",
	Long: `Walk through the need-analysis steps interactively. On the summary step
press g to generate the job ad and s to save it. With --plain the wizard asks
one question per line instead, which works in pipes and dumb terminals.`,
	Args: cobra.NoArgs,
	RunE: runWizard,
}

var wizardConfig struct {
	plain       bool
	saveAnswers string
	options     types.GenerateOptions
}

func init() {
	wizardCmd.Flags().BoolVar(&wizardConfig.plain, "plain", false, "Line-based prompts instead of the full-screen interface")
	wizardCmd.Flags().StringVar(&wizardConfig.saveAnswers, "save-answers", "", "Write the collected answers to this YAML file")
	wizardCmd.Flags().StringVar(&wizardConfig.options.Style, "style", "", "Writing style of the job ad")
	wizardCmd.Flags().StringVar(&wizardConfig.options.Language, "language", "", "Language of the job ad")
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	ctx := cmd.Context()

	steps, err := loadSteps(cfg)
	if err != nil {
		return err
	}

	var form wizard.FormState
	if wizardConfig.plain {
		w, err := wizard.New(steps)
		if err != nil {
			return err
		}
		c := newLineCollector(cmd.InOrStdin(), cmd.OutOrStdout())
		if err := wizard.Drive(ctx, w, c); err != nil && !stderrors.Is(err, wizard.ErrQuit) {
			return err
		}
		form = w.Form()
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprint(cmd.OutOrStdout(), ai.Summary(steps, form))
	} else {
		// the wizard stays usable without a model; generation then reports the problem inline
		var gen tui.Generator
		if svc, err := newService(cfg, steps, logger); err != nil {
			logger.Warn("Job ad generation unavailable", "error", err)
		} else {
			defer func() { _ = svc.Close() }()
			gen = svc
		}

		final, err := tui.Run(ctx, tui.Options{
			Steps:           steps,
			Generator:       gen,
			GenerateOptions: wizardConfig.options,
			OutputDir:       cfg.App.OutputDir,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		form = final.Form()
	}

	if wizardConfig.saveAnswers != "" {
		return saveAnswers(wizardConfig.saveAnswers, form, logger)
	}
	return nil
}

func saveAnswers(path string, form wizard.FormState, logger *errors.Logger) error {
	data, err := yaml.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	if err := common.NewFileProcessor(logger).WriteFile(path, string(data)); err != nil {
		return err
	}
	logger.Info("Answers saved", "file", path, "fields", len(form))
	return nil
}

// lineCollector asks for each field on its own line. Typing :back, :reset or
// :quit instead of an answer navigates.
type lineCollector struct {
	in  *bufio.Scanner
	out io.Writer
}

func newLineCollector(in io.Reader, out io.Writer) *lineCollector {
	return &lineCollector{in: bufio.NewScanner(in), out: out}
}

func (c *lineCollector) Collect(ctx context.Context, step wizard.Step, current wizard.FormState) (wizard.Action, wizard.FormState, error) {
	title := step.Title
	if title == "" {
		title = step.Name
	}
	fmt.Fprintf(c.out, "\n== %s ==\n", title)
	if step.Description != "" {
		fmt.Fprintln(c.out, step.Description)
	}

	collected := make(wizard.FormState, len(step.Fields))
	for _, f := range step.Fields {
		if err := ctx.Err(); err != nil {
			return wizard.ActionQuit, nil, err
		}
		prompt := f.Label
		if prompt == "" {
			prompt = f.Name
		}
		if step.IsRequired(f.Name) {
			prompt += " *"
		}
		if v, ok := current.Get(f.Name); ok && !v.IsEmpty() {
			prompt += fmt.Sprintf(" [%s]", v.String())
		}

		for {
			fmt.Fprintf(c.out, "%s: ", prompt)
			if !c.in.Scan() {
				if err := c.in.Err(); err != nil {
					return wizard.ActionQuit, nil, err
				}
				return wizard.ActionQuit, nil, nil
			}
			line := strings.TrimSpace(c.in.Text())
			switch line {
			case ":back":
				return wizard.ActionBack, nil, nil
			case ":reset":
				return wizard.ActionReset, nil, nil
			case ":quit":
				return wizard.ActionQuit, nil, nil
			}
			if line == "" {
				// keep the current answer
				break
			}
			v, err := wizard.ParseValue(f.Kind, line)
			if err != nil {
				fmt.Fprintf(c.out, "  %v\n", err)
				continue
			}
			collected.Set(f.Name, v)
			break
		}
	}
	return wizard.ActionNext, collected, nil
}

func (c *lineCollector) Reject(_ wizard.Step, err *wizard.MissingFieldsError) {
	fmt.Fprintf(c.out, "Please fill in: %s\n", strings.Join(err.Missing, ", "))
}

var _ wizard.Collector = (*lineCollector)(nil)
