package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := NewNetworkError(ErrCodeLLMConnection, "LLM endpoint unreachable", cause)

	assert.Equal(t, "LLM_CONNECTION_FAILED: LLM endpoint unreachable (caused by: dial tcp: refused)", err.Error())
	assert.ErrorIs(t, err, cause)

	plain := NewValidationError(ErrCodeInvalidRequest, "bad body", nil)
	assert.Equal(t, "INVALID_REQUEST: bad body", plain.Error())
}

func TestIsCode(t *testing.T) {
	inner := NewAIError(ErrCodeLLMTimeout, "timed out", nil)
	outer := NewAIError(ErrCodeAIServiceFailed, "generation failed", inner)
	wrapped := fmt.Errorf("job ad: %w", outer)

	assert.True(t, IsCode(wrapped, ErrCodeAIServiceFailed))
	assert.True(t, IsCode(wrapped, ErrCodeLLMTimeout))
	assert.False(t, IsCode(wrapped, ErrCodeMissingField))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrCodeLLMTimeout))
	assert.False(t, IsCode(nil, ErrCodeLLMTimeout))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"missing field", NewValidationError(ErrCodeMissingField, "", nil), http.StatusUnprocessableEntity},
		{"validation", NewValidationError(ErrCodeInvalidRequest, "", nil), http.StatusBadRequest},
		{"timeout", NewAIError(ErrCodeLLMTimeout, "", nil), http.StatusGatewayTimeout},
		{"empty result", NewAIError(ErrCodeLLMEmptyResult, "", nil), http.StatusBadGateway},
		{"not found", NewNotFoundError(ErrCodeSessionNotFound, "", nil), http.StatusNotFound},
		{"conflict", NewConflictError(ErrCodeNotAtSummary, "", nil), http.StatusConflict},
		{"internal", NewInternalError("X", "", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestLoggerFlattensAppError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithFormat("debug", "json", &buf)
	require.NoError(t, err)

	appErr := NewValidationError(ErrCodeMissingField, "missing fields", nil).
		WithContext("step", "company")
	logger.LogError(fmt.Errorf("advance: %w", appErr), "Advance rejected", "session_id", "abc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Advance rejected", record["msg"])
	assert.Equal(t, "MISSING_REQUIRED_FIELD", record["error_code"])
	assert.Equal(t, "company", record["step"])
	assert.Equal(t, "abc", record["session_id"])
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New("verbose")
	assert.Error(t, err)

	_, err = NewWithFormat("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
