package ai

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat endpoints
// (OpenAI, Groq, vLLM, LM Studio) through langchaingo
type OpenAIProvider struct {
	llm     llms.Model
	config  *config.OperationAIConfig
	breaker *CircuitBreaker[GeneratedText]
	logger  *errors.Logger
}

// Ensure OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider for an operation group
func NewOpenAIProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"OpenAI API key is required (ai.apiKey, OPENAI_API_KEY or Vault)", nil)
	}
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create OpenAI client", err)
	}

	return newOpenAIProviderWithModel(llm, cfg, operationType, logger), nil
}

func newOpenAIProviderWithModel(llm llms.Model, cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) *OpenAIProvider {
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	return &OpenAIProvider{
		llm:     llm,
		config:  cfg,
		breaker: NewCircuitBreaker[GeneratedText](breakerName("AI", operationType), cfg.CircuitBreaker, logger),
		logger:  logger,
	}
}

// Generate sends the prompt as a single human message and streams the answer
func (p *OpenAIProvider) Generate(ctx context.Context, req PromptRequest, onChunk func(string)) (GeneratedText, error) {
	ctx, span := otel.Tracer("vacalyser.ai.openai").Start(ctx, "openai.generate")
	defer span.End()

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	span.SetAttributes(
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
		attribute.Int("input.prompt_length", len(req.Prompt)),
	)

	if p.config.Timeout != nil && *p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *p.config.Timeout)
		defer cancel()
	}

	result, err := p.breaker.Execute(func() (GeneratedText, error) {
		var out GeneratedText
		var text strings.Builder
		callOpts := []llms.CallOption{
			llms.WithModel(model),
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				text.Write(chunk)
				out.Chunks++
				if onChunk != nil {
					onChunk(string(chunk))
				}
				return nil
			}),
		}
		if req.Temperature > 0 {
			callOpts = append(callOpts, llms.WithTemperature(float64(req.Temperature)))
		}

		resp, err := p.llm.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
		}, callOpts...)
		if err != nil {
			return GeneratedText{}, p.classifyError(ctx, err)
		}

		out.Text = text.String()
		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			// Providers without streaming support only fill the final choice
			if out.Text == "" {
				out.Text = choice.Content
			}
			out.Usage = usageFromGenerationInfo(choice.GenerationInfo)
		}
		out.Done = true
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return GeneratedText{}, err
	}

	span.SetAttributes(attribute.Bool("success", true), attribute.Bool("output.empty", result.Empty()))
	return result, nil
}

func (p *OpenAIProvider) classifyError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if isTimeout(ctx, err) {
		return errors.NewNetworkError(errors.ErrCodeLLMTimeout,
			"The language model did not answer in time. Please try again.", err)
	}
	return errors.NewNetworkError(errors.ErrCodeLLMConnection,
		"Could not reach the language model. Please try again.", err)
}

// usageFromGenerationInfo reads the token counters langchaingo's openai client
// puts in GenerationInfo
func usageFromGenerationInfo(info map[string]any) *TokenUsage {
	prompt, okPrompt := info["PromptTokens"].(int)
	completion, okCompletion := info["CompletionTokens"].(int)
	if !okPrompt && !okCompletion {
		return nil
	}
	total, ok := info["TotalTokens"].(int)
	if !ok {
		total = prompt + completion
	}
	return &TokenUsage{
		InputTokens:  int64(prompt),
		OutputTokens: int64(completion),
		TotalTokens:  int64(total),
	}
}

// GetModelInfo reports the configured model. OpenAI-compatible servers do not
// share a model listing API, so availability is assumed.
func (p *OpenAIProvider) GetModelInfo(_ context.Context) *ModelInfo {
	return &ModelInfo{Name: p.config.Model, Provider: "openai", Available: p.breaker.IsHealthy()}
}

// Close implements Provider
func (p *OpenAIProvider) Close() error {
	return nil
}
