package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

// OllamaProvider talks to an Ollama-style generate endpoint that answers with
// newline-delimited JSON records
type OllamaProvider struct {
	endpoint   string
	httpClient *http.Client
	config     *config.OperationAIConfig
	breaker    *CircuitBreaker[GeneratedText]
	logger     *errors.Logger
}

// Ensure OllamaProvider implements Provider
var _ Provider = (*OllamaProvider)(nil)

// generateRequest is the body posted to the generate endpoint
type generateRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	ContextSize int    `json:"num_ctx"`
}

// streamRecord is one line of the response stream. The final record also
// carries token counts.
type streamRecord struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	Error           string `json:"error,omitempty"`
	PromptEvalCount int64  `json:"prompt_eval_count,omitempty"`
	EvalCount       int64  `json:"eval_count,omitempty"`
}

// NewOllamaProvider creates a streaming client for one operation group
func NewOllamaProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*OllamaProvider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "ollama endpoint is required", nil)
	}
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}
	return &OllamaProvider{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: *cfg.Timeout},
		config:     cfg,
		breaker:    NewCircuitBreaker[GeneratedText](breakerName("AI", operationType), cfg.CircuitBreaker, logger),
		logger:     logger,
	}, nil
}

// Generate posts the prompt and accumulates the streamed fragments in arrival
// order until a record with done set or the end of the stream. Lines that are
// not valid JSON are skipped. An empty accumulation is returned without error.
// Failures are never retried.
func (o *OllamaProvider) Generate(ctx context.Context, req PromptRequest, onChunk func(string)) (GeneratedText, error) {
	ctx, span := otel.Tracer("vacalyser.ai.ollama").Start(ctx, "ollama.generate")
	defer span.End()

	req = o.withDefaults(req)
	span.SetAttributes(
		attribute.String("ai.provider", "ollama"),
		attribute.String("ai.model", req.Model),
		attribute.Int("ai.num_ctx", req.ContextSize),
		attribute.Int("input.prompt_length", len(req.Prompt)),
	)

	result, err := o.breaker.Execute(func() (GeneratedText, error) {
		return o.stream(ctx, req, onChunk)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("success", false))
		return GeneratedText{}, err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.length", len(result.Text)),
		attribute.Int("output.chunks", result.Chunks),
		attribute.Int("output.skipped_lines", result.Skipped),
		attribute.Bool("output.empty", result.Empty()),
	)
	return result, nil
}

func (o *OllamaProvider) withDefaults(req PromptRequest) PromptRequest {
	if req.Model == "" {
		req.Model = o.config.Model
	}
	if req.ContextSize <= 0 && o.config.ContextSize != nil {
		req.ContextSize = *o.config.ContextSize
	}
	return req
}

func (o *OllamaProvider) stream(ctx context.Context, req PromptRequest, onChunk func(string)) (GeneratedText, error) {
	body, err := json.Marshal(generateRequest{Model: req.Model, Prompt: req.Prompt, ContextSize: req.ContextSize})
	if err != nil {
		return GeneratedText{}, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to encode generate request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return GeneratedText{}, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid ollama endpoint", err).
			WithContext("endpoint", o.endpoint)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return GeneratedText{}, o.transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return GeneratedText{}, errors.NewNetworkError(errors.ErrCodeLLMConnection,
			fmt.Sprintf("The language model endpoint answered with status %d.", resp.StatusCode), nil).
			WithContext("endpoint", o.endpoint).
			WithContext("status", resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(snippet)))
	}

	return o.accumulate(ctx, resp.Body, onChunk)
}

// accumulate reads the record stream. A bufio.Reader is used instead of a
// Scanner so that single records of any length are accepted.
func (o *OllamaProvider) accumulate(ctx context.Context, r io.Reader, onChunk func(string)) (GeneratedText, error) {
	var (
		result GeneratedText
		text   strings.Builder
		reader = bufio.NewReader(r)
	)

	for {
		line, readErr := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var rec streamRecord
			if err := json.Unmarshal(trimmed, &rec); err != nil {
				result.Skipped++
				o.logger.Debug("Skipping malformed stream line", "error", err.Error(), "line_length", len(trimmed))
			} else {
				if rec.Error != "" {
					return GeneratedText{}, errors.NewAIError(errors.ErrCodeAIServiceFailed,
						"The language model reported an error.", stderrors.New(rec.Error))
				}
				if rec.Response != "" {
					text.WriteString(rec.Response)
					result.Chunks++
					if onChunk != nil {
						onChunk(rec.Response)
					}
				}
				if rec.Done {
					result.Done = true
					if rec.PromptEvalCount > 0 || rec.EvalCount > 0 {
						result.Usage = &TokenUsage{
							InputTokens:  rec.PromptEvalCount,
							OutputTokens: rec.EvalCount,
							TotalTokens:  rec.PromptEvalCount + rec.EvalCount,
						}
					}
					break
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return GeneratedText{}, o.transportError(ctx, readErr)
		}
	}

	result.Text = text.String()
	if result.Skipped > 0 {
		o.logger.Warn("Ignored malformed lines in model stream", "skipped", result.Skipped, "chunks", result.Chunks)
	}
	return result, nil
}

// transportError classifies a failed request or body read
func (o *OllamaProvider) transportError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if isTimeout(ctx, err) {
		return errors.NewNetworkError(errors.ErrCodeLLMTimeout,
			"The language model did not answer in time. Please try again.", err).
			WithContext("endpoint", o.endpoint).
			WithContext("timeout", o.httpClient.Timeout.String())
	}
	return errors.NewNetworkError(errors.ErrCodeLLMConnection,
		"Could not reach the language model. Please check that it is running and try again.", err).
		WithContext("endpoint", o.endpoint)
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// GetModelInfo queries the daemon's model list for the configured model
func (o *OllamaProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: o.config.Model, Provider: "ollama"}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	tagsURL := strings.TrimSuffix(o.endpoint, "/generate") + "/tags"
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, tagsURL, nil)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		o.logger.Warn("Model availability check failed", "model", o.config.Model, "provider", "ollama", "error", err.Error())
		return info
	}
	defer func() { _ = resp.Body.Close() }()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if resp.StatusCode != http.StatusOK {
		info.Error = fmt.Sprintf("model list returned status %d", resp.StatusCode)
		return info
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		info.Error = fmt.Sprintf("Failed to decode model list: %v", err)
		return info
	}
	for _, m := range tags.Models {
		if m.Name == o.config.Model || strings.TrimSuffix(m.Name, ":latest") == o.config.Model {
			info.Available = true
			info.DisplayName = m.Name
			return info
		}
	}
	info.Error = "model not pulled"
	return info
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (o *OllamaProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":   o.breaker.GetStats(),
		"overall_healthy": o.breaker.IsHealthy(),
	}
}

// Close releases idle connections
func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
