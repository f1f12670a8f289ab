package ai

import (
	"context"
	"time"
)

// Provider generates free text from a prompt. Implementations stream the
// answer and report each fragment to onChunk as it arrives; onChunk may be nil.
type Provider interface {
	Generate(ctx context.Context, req PromptRequest, onChunk func(string)) (GeneratedText, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// PromptRequest is one generation call
type PromptRequest struct {
	Prompt      string
	Model       string
	ContextSize int
	Temperature float32
}

// GeneratedText is the accumulated answer of one generation call.
// An empty Text with a nil error means the model produced nothing.
type GeneratedText struct {
	Text    string
	Chunks  int // fragments accumulated
	Skipped int // malformed stream lines ignored
	Done    bool
	Usage   *TokenUsage
}

// Empty reports whether the model returned no content
func (g GeneratedText) Empty() bool {
	return g.Text == ""
}

// TokenUsage contains token usage information from an AI operation
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
	Estimated    bool  `json:"estimated,omitempty"`
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// modelCheckTimeout bounds provider availability checks
const modelCheckTimeout = 10 * time.Second
