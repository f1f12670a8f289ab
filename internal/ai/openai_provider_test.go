package ai

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

// fakeModel streams fixed chunks through the streaming callback
type fakeModel struct {
	chunks  []string
	content string
	info    map[string]any
	err     error
	got     llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(&m.got)
	}
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.chunks {
		if m.got.StreamingFunc != nil {
			if err := m.got.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.content, GenerationInfo: m.info}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestOpenAIGenerateStreaming(t *testing.T) {
	m := &fakeModel{
		chunks:  []string{"Hel", "", "lo"},
		content: "Hello",
		info:    map[string]any{"PromptTokens": 7, "CompletionTokens": 2, "TotalTokens": 9},
	}
	cfg := testOperationConfig("")
	cfg.Provider = "openai"
	p := newOpenAIProviderWithModel(m, cfg, config.OperationJobAd, nil)

	var chunks []string
	out, err := p.Generate(context.Background(), PromptRequest{Prompt: "hi", Temperature: 0.2}, func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", out.Text)
	assert.Equal(t, 2, out.Chunks)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "test-model", m.got.Model)
	assert.InDelta(t, 0.2, m.got.Temperature, 0.001)
	require.NotNil(t, out.Usage)
	assert.Equal(t, int64(9), out.Usage.TotalTokens)
}

func TestOpenAIGenerateNonStreamingFallback(t *testing.T) {
	m := &fakeModel{content: "final answer"}
	p := newOpenAIProviderWithModel(m, testOperationConfig(""), config.OperationSuggest, nil)

	out, err := p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "final answer", out.Text)
	assert.Nil(t, out.Usage)
}

func TestOpenAIGenerateError(t *testing.T) {
	m := &fakeModel{err: stderrors.New("connection reset")}
	p := newOpenAIProviderWithModel(m, testOperationConfig(""), config.OperationSuggest, nil)

	_, err := p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLLMConnection))
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(testOperationConfig(""), config.OperationSuggest, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingAPIKey))
}

func TestUsageFromGenerationInfo(t *testing.T) {
	assert.Nil(t, usageFromGenerationInfo(nil))
	u := usageFromGenerationInfo(map[string]any{"PromptTokens": 3, "CompletionTokens": 4})
	require.NotNil(t, u)
	assert.Equal(t, int64(7), u.TotalTokens)
}
