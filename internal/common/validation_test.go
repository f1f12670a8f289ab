package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/errors"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "yaml", "text", "markdown"}
	tests := []struct {
		name          string
		format        string
		supported     []string
		expectedError string
	}{
		{name: "valid format - json", format: "json", supported: supported},
		{name: "valid format - markdown", format: "markdown", supported: supported},
		{
			name: "invalid format - xml", format: "xml", supported: supported,
			expectedError: "unsupported output format 'xml'. Supported formats: [json yaml text markdown]",
		},
		{
			name: "case sensitive - JSON uppercase", format: "JSON", supported: supported,
			expectedError: "unsupported output format 'JSON'. Supported formats: [json yaml text markdown]",
		},
		{
			name: "empty format string", format: "", supported: []string{"json"},
			expectedError: "unsupported output format ''. Supported formats: [json]",
		},
		{name: "empty supported formats - should allow all", format: "xml", supported: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.expectedError)
		})
	}
}

func TestValidateKindAndJobTitle(t *testing.T) {
	assert.NoError(t, ValidateKind("job_ad", []string{"job_ad", "summary"}))
	err := ValidateKind("poem", []string{"job_ad", "summary"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownArtifact))

	tests := []struct {
		title string
		code  string
	}{
		{title: "Data Scientist"},
		{title: "  ", code: errors.ErrCodeMissingField},
		{title: "C++ Developer", code: errors.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			err := ValidateJobTitle(tt.title)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name string
		file InputFile
	}{
		{
			name: "yaml",
			file: InputFile{Name: "answers.yaml", Content: "job_title: Data Scientist\nskills:\n  - Python\n  - SQL\nsalary:\n  min: 50000\n  max: 70000\n"},
		},
		{
			name: "json",
			file: InputFile{Name: "answers.json", Content: `{"job_title":"Data Scientist","skills":["Python","SQL"],"salary":{"min":50000,"max":70000}}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, err := ParseAnswers(tt.file)
			require.NoError(t, err)
			assert.Equal(t, "Data Scientist", form.Text("job_title"))
			assert.Equal(t, []string{"Python", "SQL"}, form["skills"].List())
			lo, hi := form["salary"].Range()
			assert.Equal(t, []float64{50000, 70000}, []float64{lo, hi})
		})
	}

	_, err := ParseAnswers(InputFile{Name: "broken.json", Content: "{"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))

	form, err := ParseAnswers(InputFile{Name: "empty.yaml", Content: ""})
	require.NoError(t, err)
	assert.Empty(t, form)
}

func TestRunAICommand(t *testing.T) {
	dir := t.TempDir()
	answers := filepath.Join(dir, "answers.yaml")
	require.NoError(t, os.WriteFile(answers, []byte("job_title: Chef\n"), 0o600))
	out := filepath.Join(dir, "out", "chef_job_ad.txt")

	var gotForm wizard.FormState
	err := RunAICommand(context.Background(), errors.NewDiscardLogger(),
		CommandConfig{OutputFile: out, OutputFormat: "text"},
		[]string{answers},
		func(files []InputFile) (wizard.FormState, error) { return ParseAnswers(files[0]) },
		func(_ context.Context, form wizard.FormState) (*types.Artifact, *types.TokenUsage, error) {
			gotForm = form
			return &types.Artifact{Kind: "job_ad", Title: "Job ad", Content: "Cook with us."}, &types.TokenUsage{TotalTokens: 3}, nil
		},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, "Chef", gotForm.Text("job_title"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Cook with us.")
}

func TestRunAICommandMissingFile(t *testing.T) {
	err := RunAICommand(context.Background(), errors.NewDiscardLogger(), CommandConfig{OutputFormat: "json"},
		[]string{filepath.Join(t.TempDir(), "missing.yaml")},
		func([]InputFile) (string, error) { return "", nil },
		func(context.Context, string) (string, *types.TokenUsage, error) { return "", nil, nil },
		nil,
	)
	assert.True(t, errors.IsCode(err, "INVALID_INPUT_FILE"))
}

func TestHandleOutputToWriter(t *testing.T) {
	var buf bytes.Buffer
	oh := NewOutputHandler(nil)
	oh.stdout = &buf

	require.NoError(t, oh.HandleOutput(types.Suggestions{Kind: "skills", JobTitle: "Chef", Items: []string{"Knife work"}}, CommandConfig{OutputFormat: "text"}))
	assert.Contains(t, buf.String(), "Knife work")
	assert.Contains(t, oh.GetSupportedFormats(), "yaml")
}
