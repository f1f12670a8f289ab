package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vacalyser/internal/ai"
	"vacalyser/internal/common"
	"vacalyser/internal/extract"
	"vacalyser/internal/parse"
	"vacalyser/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract text and company facts from a document or web page",
	Long: `Extract plain text from a .txt, .md, .html, .docx or .pdf file, or from a web
page given with --url, and list the company facts found in it (name, industry,
location, size, ...), the salary range and the section headings. With --ai the facts are extracted by the language model
instead of by key/value matching.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if extractConfig.url == "" {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.NoArgs(cmd, args)
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &extractConfig.CommandConfig)
	},
	RunE: runExtract,
}

var extractConfig struct {
	common.CommandConfig
	url   string
	useAI bool
}

func init() {
	addOutputFlags(extractCmd, &extractConfig.CommandConfig)
	extractCmd.Flags().StringVar(&extractConfig.url, "url", "", "Web page to extract instead of a file")
	extractCmd.Flags().BoolVar(&extractConfig.useAI, "ai", false, "Extract company facts with the language model")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	ctx := cmd.Context()

	ex := extract.New(cfg.App.MaxFileSize)
	result := types.ExtractResult{Source: extractConfig.url}
	var err error
	if extractConfig.url != "" {
		result.Text, err = ex.URL(ctx, extractConfig.url)
	} else {
		result.Source = args[0]
		result.Text, err = ex.File(args[0])
	}
	if err != nil {
		return err
	}
	logger.Info("Extracted text", "source", result.Source, "chars", len(result.Text))

	if extractConfig.useAI {
		svc, err := ai.NewService(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create AI service: %w", err)
		}
		defer func() {
			if err := svc.Close(); err != nil {
				logger.LogError(err, "Failed to close AI service")
			}
		}()
		if result.CompanyInfo, err = svc.ExtractCompanyInfo(ctx, result.Text); err != nil {
			return fmt.Errorf("failed to extract company info: %w", err)
		}
	} else {
		result.CompanyInfo = parse.CompanyInfo(result.Text)
	}
	if lo, hi, ok := parse.SalaryRange(result.Text); ok {
		result.Salary = &types.SalaryRange{Min: lo, Max: hi}
	}
	for _, sec := range parse.Sections(result.Text) {
		if sec.Title != "" {
			result.Sections = append(result.Sections, sec.Title)
		}
	}

	return common.NewOutputHandler(logger).HandleOutput(result, extractConfig.CommandConfig)
}
