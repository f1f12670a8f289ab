package ai

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
	"vacalyser/internal/parse"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// InsufficientDataMessage is the job ad text returned when nothing worth
// advertising has been collected yet
const InsufficientDataMessage = "Insufficient data to generate a job advertisement."

// jobAdFields are the answers a job ad cannot be written without; at least one
// must be filled
var jobAdFields = []string{"job_title", "company_name", "role_description", "tasks", "hard_skills"}

// Generation option defaults
const (
	DefaultStyle    = "professional"
	DefaultLanguage = "English"
	DefaultAudience = "hiring manager"
)

// Service turns collected answers into prompts and prompts into artifacts.
// Each operation group has its own provider and breaker.
type Service struct {
	providers map[string]Provider
	cfg       *config.Config
	steps     []wizard.Step
	estimator TokenEstimator
	logger    *errors.Logger
	now       func() time.Time
}

// NewService creates one provider per operation group from the configuration
func NewService(cfg *config.Config, logger *errors.Logger) (*Service, error) {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}

	providers := make(map[string]Provider, 3)
	for _, op := range []string{config.OperationJobAd, config.OperationInterview, config.OperationSuggest} {
		opCfg := cfg.GetOperationConfig(op)

		logger.Debug("Initializing AI provider",
			"provider", opCfg.Provider,
			"operation_type", op,
			"model", opCfg.Model,
			"context_size", *opCfg.ContextSize,
			"temperature", *opCfg.Temperature,
			"timeout", *opCfg.Timeout)

		provider, err := newProvider(&opCfg, op, logger)
		if err != nil {
			for _, p := range providers {
				_ = p.Close()
			}
			return nil, err
		}
		providers[op] = provider
	}

	return NewServiceWithProviders(cfg, providers, logger), nil
}

// NewServiceWithProviders builds a service around ready providers keyed by
// operation group. Missing groups fall back to the suggest provider.
func NewServiceWithProviders(cfg *config.Config, providers map[string]Provider, logger *errors.Logger) *Service {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	return &Service{
		providers: providers,
		cfg:       cfg,
		steps:     wizard.DefaultSteps(),
		estimator: NewTokenEstimator(cfg.AI.TokenEstimator),
		logger:    logger,
		now:       time.Now,
	}
}

func newProvider(opCfg *config.OperationAIConfig, op string, logger *errors.Logger) (Provider, error) {
	var (
		provider Provider
		err      error
	)
	switch opCfg.Provider {
	case "ollama":
		provider, err = NewOllamaProvider(opCfg, op, logger)
	case "gemini":
		provider, err = NewGeminiProvider(opCfg, op, logger)
	case "openai":
		provider, err = NewOpenAIProvider(opCfg, op, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", opCfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// WithSteps sets the step catalog the summary is rendered from
func (s *Service) WithSteps(steps []wizard.Step) *Service {
	s.steps = steps
	return s
}

func (s *Service) provider(op string) (Provider, error) {
	if p, ok := s.providers[op]; ok && p != nil {
		return p, nil
	}
	if p, ok := s.providers[config.OperationSuggest]; ok && p != nil {
		return p, nil
	}
	return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
		fmt.Sprintf("no AI provider configured for %s", op), nil)
}

// Generate builds an artifact of the given kind from the form. onChunk, when
// set, receives every streamed fragment in arrival order. An empty model
// answer is reported as LLM_EMPTY_RESULT.
func (s *Service) Generate(ctx context.Context, kind string, form wizard.FormState, opts types.GenerateOptions, onChunk func(string)) (*types.Artifact, error) {
	if !slices.Contains(ArtifactKinds, kind) {
		return nil, errors.NewValidationError(errors.ErrCodeUnknownArtifact,
			fmt.Sprintf("unknown artifact kind %q", kind), nil).
			WithContext("supported", strings.Join(ArtifactKinds, ", "))
	}
	opts = withOptionDefaults(opts)

	artifact := &types.Artifact{
		Kind:        kind,
		Title:       artifactTitle(kind, form),
		FileName:    parse.FileName(form.Text("job_title"), kind),
		Options:     opts,
		GeneratedAt: s.now(),
	}

	switch {
	case kind == KindSummary:
		artifact.Content = Summary(s.steps, form)
		return artifact, nil
	case kind == KindJobAd && !form.Filled(jobAdFields...):
		artifact.Content = InsufficientDataMessage
		return artifact, nil
	}

	fields := form.Strings()
	fields["style"] = opts.Style
	fields["language"] = opts.Language
	fields["audience"] = opts.Audience

	result, opCfg, err := s.run(ctx, kind, fields, onChunk)
	if err != nil {
		return nil, err
	}

	artifact.Content = strings.TrimSpace(result.Text)
	artifact.Provider = opCfg.Provider
	artifact.Model = opCfg.Model
	artifact.Chunks = result.Chunks
	artifact.SkippedLines = result.Skipped
	artifact.Usage = toTypesUsage(result.Usage)
	return artifact, nil
}

// Suggest asks the model for a bullet list for jobTitle and parses it. Skills
// are also sorted into categories.
func (s *Service) Suggest(ctx context.Context, kind, jobTitle string) (*types.Suggestions, error) {
	limit, ok := suggestionLimits[kind]
	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeUnknownArtifact,
			fmt.Sprintf("unknown suggestion kind %q", kind), nil).
			WithContext("supported", strings.Join(SuggestionKinds, ", "))
	}
	if !parse.ValidJobTitle(jobTitle) {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Please enter a job title using letters, digits and spaces only.", nil).
			WithContext("job_title", jobTitle)
	}

	result, _, err := s.run(ctx, kind, map[string]string{"job_title": jobTitle}, nil)
	if err != nil {
		return nil, err
	}

	out := &types.Suggestions{
		Kind:     kind,
		JobTitle: jobTitle,
		Items:    parse.CollectBullets(result.Text, limit),
	}
	if out.Items == nil {
		out.Items = []string{}
	}
	if kind == KindSkills {
		out.Categories = parse.CategorizeSkills(out.Items)
	}
	return out, nil
}

// ExtractCompanyInfo asks the model for company facts in text and returns them
// keyed by form field name
func (s *Service) ExtractCompanyInfo(ctx context.Context, text string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "no text to extract company information from", nil)
	}
	result, _, err := s.run(ctx, KindCompanyInfo, map[string]string{"text": text}, nil)
	if err != nil {
		return nil, err
	}
	return parse.CompanyInfo(result.Text), nil
}

// run resolves the template for kind, fills it and calls the provider of the
// kind's operation group
func (s *Service) run(ctx context.Context, kind string, fields map[string]string, onChunk func(string)) (GeneratedText, config.OperationAIConfig, error) {
	op := config.OperationForKind(kind)
	opCfg := s.cfg.GetOperationConfig(op)

	provider, err := s.provider(op)
	if err != nil {
		return GeneratedText{}, opCfg, err
	}

	template := resolvePrompt(s.cfg.TemplateFor(kind), DefaultTemplates[kind])
	prompt := BuildPrompt(template, fields, *opCfg.SanitizeInput)

	promptTokens := s.estimator.Count(prompt)
	if promptTokens > *opCfg.ContextSize {
		s.logger.Warn("Prompt may exceed the model context",
			"kind", kind,
			"estimated_tokens", promptTokens,
			"context_size", *opCfg.ContextSize)
	}

	s.logger.Debug("Sending prompt", "kind", kind, "operation_type", op, "prompt_length", len(prompt))

	result, err := provider.Generate(ctx, PromptRequest{
		Prompt:      prompt,
		Model:       opCfg.Model,
		ContextSize: *opCfg.ContextSize,
		Temperature: *opCfg.Temperature,
	}, onChunk)
	if err != nil {
		return GeneratedText{}, opCfg, err
	}

	if strings.TrimSpace(result.Text) == "" {
		return GeneratedText{}, opCfg, errors.NewAIError(errors.ErrCodeLLMEmptyResult, errors.EmptyResultMessage, nil).
			WithContext("kind", kind).
			WithContext("skipped_lines", result.Skipped)
	}

	if result.Usage == nil {
		in, out := int64(promptTokens), int64(s.estimator.Count(result.Text))
		result.Usage = &TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out, Estimated: true}
	}
	return result, opCfg, nil
}

func withOptionDefaults(opts types.GenerateOptions) types.GenerateOptions {
	if opts.Style == "" {
		opts.Style = DefaultStyle
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Audience == "" {
		opts.Audience = DefaultAudience
	}
	return opts
}

func artifactTitle(kind string, form wizard.FormState) string {
	title := form.Text("job_title")
	if title == "" {
		title = "Vacancy"
	}
	switch kind {
	case KindJobAd:
		return title + " (m/w/d)"
	case KindInterviewPrep:
		return "Interview preparation: " + title
	case KindOnboarding:
		return "Onboarding plan: " + title
	default:
		return "Need analysis: " + title
	}
}

func toTypesUsage(u *TokenUsage) *types.TokenUsage {
	if u == nil {
		return nil
	}
	return &types.TokenUsage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.TotalTokens,
		Estimated:    u.Estimated,
	}
}

// Summary renders the collected answers step by step, in catalog order, with
// fields that no step declares listed at the end
func Summary(steps []wizard.Step, form wizard.FormState) string {
	var b strings.Builder
	seen := make(map[string]bool, len(form))

	for _, step := range steps {
		var lines []string
		for _, f := range step.Fields {
			seen[f.Name] = true
			v, ok := form.Get(f.Name)
			if !ok || v.IsEmpty() {
				continue
			}
			label := f.Label
			if label == "" {
				label = f.Name
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", label, v.String()))
		}
		if len(lines) == 0 {
			continue
		}
		title := step.Title
		if title == "" {
			title = step.Name
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", title, strings.Join(lines, "\n"))
	}

	var extra []string
	for _, name := range slices.Sorted(maps.Keys(form)) {
		if seen[name] || form[name].IsEmpty() {
			continue
		}
		extra = append(extra, fmt.Sprintf("- %s: %s", name, form[name].String()))
	}
	if len(extra) > 0 {
		fmt.Fprintf(&b, "## Additional information\n%s\n\n", strings.Join(extra, "\n"))
	}

	if b.Len() == 0 {
		return "No information collected yet."
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// GetModelInfo reports model availability per operation group for health checks
func (s *Service) GetModelInfo(ctx context.Context) map[string]*ModelInfo {
	out := make(map[string]*ModelInfo, len(s.providers))
	for op, p := range s.providers {
		out[op] = p.GetModelInfo(ctx)
	}
	return out
}

// statsProvider is implemented by providers that expose breaker statistics
type statsProvider interface {
	GetCircuitBreakerStats() map[string]any
}

// Stats returns circuit breaker statistics per operation group
func (s *Service) Stats() map[string]any {
	out := make(map[string]any, len(s.providers))
	for op, p := range s.providers {
		if sp, ok := p.(statsProvider); ok {
			out[op] = sp.GetCircuitBreakerStats()
		}
	}
	return out
}

// Close releases every provider
func (s *Service) Close() error {
	var errs []error
	for _, p := range s.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.NewInternalError(errors.ErrCodeAIServiceFailed, "failed to close AI providers", errs[0])
	}
	return nil
}
