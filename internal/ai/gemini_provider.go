package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client       *genai.Client
	config       *config.OperationAIConfig
	breaker      *CircuitBreaker[GeneratedText]
	modelBreaker *CircuitBreaker[*genai.Model]
	logger       *errors.Logger
}

// Ensure GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for an operation group
func NewGeminiProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			"Gemini API key is required (ai.apiKey, GEMINI_API_KEY or Vault)", nil)
	}
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: *cfg.Timeout},
	})
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
	}

	// The model lookup is less critical, so it trips later
	modelCB := cfg.CircuitBreaker
	modelCB.MinRequests, modelCB.FailureThreshold = 5, 0.8

	return &GeminiProvider{
		client:       client,
		config:       cfg,
		breaker:      NewCircuitBreaker[GeneratedText](breakerName("AI", operationType), cfg.CircuitBreaker, logger),
		modelBreaker: NewCircuitBreaker[*genai.Model](breakerName("AI-Model", operationType), modelCB, logger),
		logger:       logger,
	}, nil
}

// Generate streams the answer with GenerateContentStream. Failures are never
// retried; retryable failures are reported as LLM_CONNECTION_FAILED.
func (g *GeminiProvider) Generate(ctx context.Context, req PromptRequest, onChunk func(string)) (GeneratedText, error) {
	ctx, span := otel.Tracer("vacalyser.ai.gemini").Start(ctx, "gemini.generate")
	defer span.End()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}
	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", model),
		attribute.Float64("ai.temperature", float64(req.Temperature)),
		attribute.Int("input.prompt_length", len(req.Prompt)),
	)

	genCfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		genCfg.Temperature = &req.Temperature
	}

	result, err := g.breaker.Execute(func() (GeneratedText, error) {
		var (
			out  GeneratedText
			text strings.Builder
		)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, model, genai.Text(req.Prompt), genCfg) {
			if err != nil {
				return GeneratedText{}, g.classifyError(ctx, err)
			}
			if usage := extractTokenUsage(resp); usage != nil {
				out.Usage = usage
			}
			chunk := resp.Text()
			if chunk == "" {
				continue
			}
			text.WriteString(chunk)
			out.Chunks++
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		out.Text = text.String()
		out.Done = true
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return GeneratedText{}, err
	}

	if result.Usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", result.Usage.InputTokens),
			attribute.Int64("ai.tokens.output", result.Usage.OutputTokens),
			attribute.Int64("ai.tokens.total", result.Usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true), attribute.Bool("output.empty", result.Empty()))
	return result, nil
}

// classifyError maps a Gemini failure to the client's error kinds
func (g *GeminiProvider) classifyError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if isTimeout(ctx, err) {
		return errors.NewNetworkError(errors.ErrCodeLLMTimeout,
			"The language model did not answer in time. Please try again.", err)
	}
	if isRetryableError(err) {
		return errors.NewNetworkError(errors.ErrCodeLLMConnection,
			"The language model is unavailable at the moment. Please try again.", err)
	}
	return errors.NewAIError(errors.ErrCodeAIServiceFailed, "Gemini rejected the request", err)
}

// isRetryableError reports whether a failure is transient: network errors and
// throttling or server-side API statuses
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if stderrors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// extractTokenUsage extracts token usage information from a Gemini response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model, Provider: "gemini"}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", "gemini",
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.breaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.breaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider
func (g *GeminiProvider) Close() error {
	return nil
}
