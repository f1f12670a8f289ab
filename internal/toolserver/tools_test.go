package toolserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/errors"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

type fakeGenerator struct {
	form wizard.FormState
	opts types.GenerateOptions
	err  error
}

func (f *fakeGenerator) Generate(_ context.Context, kind string, form wizard.FormState, opts types.GenerateOptions, _ func(string)) (*types.Artifact, error) {
	f.form, f.opts = form, opts
	if f.err != nil {
		return nil, f.err
	}
	return &types.Artifact{Kind: kind, Content: "Join our team as " + form.Text("job_title")}, nil
}

func (f *fakeGenerator) Suggest(_ context.Context, kind, jobTitle string) (*types.Suggestions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Suggestions{Kind: kind, JobTitle: jobTitle, Items: []string{"Python", "SQL"}}, nil
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

// extractText extracts text from CallToolResult.Content[0]
func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", result.Content[0])
	return text.Text
}

func TestParseBulletPoints(t *testing.T) {
	srv := New(nil, nil, "test", nil)

	tests := []struct {
		name    string
		args    map[string]any
		want    []string
		isError bool
	}{
		{
			name: "mixed markers",
			args: map[string]any{"text": "Intro\n- Python\n• SQL\n* Docker"},
			want: []string{"Python", "SQL", "Docker"},
		},
		{
			name: "limit",
			args: map[string]any{"text": "- a\n- b\n- c", "limit": float64(2)},
			want: []string{"a", "b"},
		},
		{
			name: "no bullets",
			args: map[string]any{"text": "plain prose"},
			want: []string{},
		},
		{name: "missing text", args: map[string]any{}, isError: true},
		{name: "negative limit", args: map[string]any{"text": "- a", "limit": float64(-1)}, isError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleParseBullets(context.Background(), call("parse_bullet_points", tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)
			if tt.isError {
				return
			}
			var got struct {
				Items []string `json:"items"`
			}
			require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &got))
			if diff := cmp.Diff(tt.want, got.Items); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListSteps(t *testing.T) {
	srv := New(nil, nil, "test", nil)

	result, err := srv.handleListSteps(context.Background(), call("list_steps", nil))
	require.NoError(t, err)

	var got types.StepList
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &got))
	require.Len(t, got.Steps, len(wizard.DefaultSteps()))
	assert.Equal(t, "company", got.Steps[0].Name)
}

func TestSuggest(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, "test", nil)

	result, err := srv.handleSuggest(context.Background(), call("suggest", map[string]any{
		"kind": "skills", "job_title": "Data Scientist",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	var got types.Suggestions
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &got))
	assert.Equal(t, []string{"Python", "SQL"}, got.Items)

	result, err = srv.handleSuggest(context.Background(), call("suggest", map[string]any{
		"kind": "salaries", "job_title": "Data Scientist",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGenerateJobAd(t *testing.T) {
	gen := &fakeGenerator{}
	srv := New(gen, nil, "test", nil)

	result, err := srv.handleGenerateJobAd(context.Background(), call("generate_job_ad", map[string]any{
		"answers": map[string]any{
			"job_title": "Data Scientist",
			"skills":    []any{"Python", "SQL"},
			"salary":    map[string]any{"min": float64(50000), "max": float64(70000)},
		},
		"style": "casual",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	assert.Equal(t, "Join our team as Data Scientist", extractText(t, result))
	assert.Equal(t, []string{"Python", "SQL"}, gen.form["skills"].List())
	lo, hi := gen.form["salary"].Range()
	assert.Equal(t, [2]float64{50000, 70000}, [2]float64{lo, hi})
	assert.Equal(t, "casual", gen.opts.Style)
}

func TestGenerateJobAdErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		args map[string]any
		want string
	}{
		{
			name: "answers not an object",
			gen:  &fakeGenerator{},
			args: map[string]any{"answers": "job_title=x"},
			want: "'answers' must be an object",
		},
		{
			name: "empty model result",
			gen:  &fakeGenerator{err: errors.NewAIError(errors.ErrCodeLLMEmptyResult, errors.EmptyResultMessage, nil)},
			args: map[string]any{"answers": map[string]any{"job_title": "Chef"}},
			want: errors.ErrCodeLLMEmptyResult + ": " + errors.EmptyResultMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(tt.gen, nil, "test", nil)
			result, err := srv.handleGenerateJobAd(context.Background(), call("generate_job_ad", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, extractText(t, result))
		})
	}
}
