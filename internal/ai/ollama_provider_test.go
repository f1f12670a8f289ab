package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
)

func timePtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                      { return &i }
func float32Ptr(f float32) *float32          { return &f }
func boolPtr(b bool) *bool                   { return &b }

func testOperationConfig(endpoint string) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider:      "ollama",
		Endpoint:      endpoint,
		Model:         "test-model",
		ContextSize:   intPtr(4096),
		Timeout:       timePtr(5 * time.Second),
		Temperature:   float32Ptr(0.7),
		SanitizeInput: boolPtr(true),
	}
}

// streamServer answers every generate call with body and records the request
func streamServer(t *testing.T, body string, got *generateRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaGenerateStream(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantText    string
		wantChunks  int
		wantSkipped int
		wantDone    bool
	}{
		{
			name:       "stops at first done record",
			body:       "{\"response\":\"Hel\",\"done\":false}\n{\"response\":\"lo\",\"done\":true}\n{\"response\":\"ignored\",\"done\":false}\n",
			wantText:   "Hello",
			wantChunks: 2,
			wantDone:   true,
		},
		{
			name:        "malformed line is skipped",
			body:        "not json\n{\"response\":\"a\",\"done\":false}\n{\"response\":\"b\"\n{\"response\":\"c\",\"done\":true}\n",
			wantText:    "ac",
			wantChunks:  2,
			wantSkipped: 2,
			wantDone:    true,
		},
		{
			name:     "zero fragments is an empty result",
			body:     "{\"response\":\"\",\"done\":true}\n",
			wantText: "",
			wantDone: true,
		},
		{
			name:       "end of stream without done",
			body:       "{\"response\":\"par\",\"done\":false}\n{\"response\":\"tial\",\"done\":false}",
			wantText:   "partial",
			wantChunks: 2,
		},
		{
			name:     "blank lines are ignored",
			body:     "\n\n{\"response\":\"x\",\"done\":true}\n\n",
			wantText: "x", wantChunks: 1, wantDone: true,
		},
		{
			name: "empty body",
			body: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := streamServer(t, tt.body, nil)
			p, err := NewOllamaProvider(testOperationConfig(srv.URL+"/api/generate"), config.OperationJobAd, nil)
			require.NoError(t, err)

			got, err := p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantChunks, got.Chunks)
			assert.Equal(t, tt.wantSkipped, got.Skipped)
			assert.Equal(t, tt.wantDone, got.Done)
			assert.Equal(t, tt.wantText == "", got.Empty())
		})
	}
}

func TestOllamaGenerateRequestBody(t *testing.T) {
	var got generateRequest
	srv := streamServer(t, "{\"response\":\"ok\",\"done\":true,\"prompt_eval_count\":12,\"eval_count\":3}\n", &got)

	p, err := NewOllamaProvider(testOperationConfig(srv.URL), config.OperationSuggest, nil)
	require.NoError(t, err)

	var chunks []string
	out, err := p.Generate(context.Background(), PromptRequest{Prompt: "List skills"}, func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)

	assert.Equal(t, generateRequest{Model: "test-model", Prompt: "List skills", ContextSize: 4096}, got)
	assert.Equal(t, []string{"ok"}, chunks)
	require.NotNil(t, out.Usage)
	assert.Equal(t, int64(15), out.Usage.TotalTokens)
}

func TestOllamaGenerateErrors(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		p, err := NewOllamaProvider(testOperationConfig(srv.URL), config.OperationJobAd, nil)
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeLLMConnection))
		appErr, ok := errors.As(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, appErr.Context["status"])
	})

	t.Run("connection refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		p, err := NewOllamaProvider(testOperationConfig("http://"+addr+"/api/generate"), config.OperationJobAd, nil)
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeLLMConnection))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		cfg := testOperationConfig(srv.URL)
		cfg.Timeout = timePtr(50 * time.Millisecond)
		p, err := NewOllamaProvider(cfg, config.OperationJobAd, nil)
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeLLMTimeout))
	})

	t.Run("in-band error record", func(t *testing.T) {
		srv := streamServer(t, "{\"error\":\"out of memory\"}\n", nil)
		p, err := NewOllamaProvider(testOperationConfig(srv.URL), config.OperationJobAd, nil)
		require.NoError(t, err)

		_, err = p.Generate(context.Background(), PromptRequest{Prompt: "hi"}, nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAIServiceFailed))
		assert.Contains(t, err.Error(), "out of memory")
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := NewOllamaProvider(testOperationConfig(""), config.OperationJobAd, nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
	})
}

func TestOllamaGetModelInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"models":[{"name":"other:7b"},{"name":"test-model:latest"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := NewOllamaProvider(testOperationConfig(srv.URL+"/api/generate"), config.OperationJobAd, nil)
	require.NoError(t, err)

	info := p.GetModelInfo(context.Background())
	assert.True(t, info.Available)
	assert.Equal(t, "test-model:latest", info.DisplayName)

	cfg := testOperationConfig(srv.URL + "/api/generate")
	cfg.Model = "missing"
	p, err = NewOllamaProvider(cfg, config.OperationJobAd, nil)
	require.NoError(t, err)
	info = p.GetModelInfo(context.Background())
	assert.False(t, info.Available)
	assert.True(t, strings.Contains(info.Error, "not pulled"))
}
