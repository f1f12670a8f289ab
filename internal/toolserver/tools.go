package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"vacalyser/internal/ai"
	"vacalyser/internal/errors"
	"vacalyser/internal/parse"
	"vacalyser/internal/session"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// registerTools adds parse_bullet_points, list_steps, suggest and generate_job_ad
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("parse_bullet_points",
			mcp.WithDescription("Extract the items of a bullet list ('-', '•' or '*' markers) from free text"),
			mcp.WithString("text", mcp.Required(), mcp.Description("Text containing a bullet list")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of items; 0 or absent means no limit")),
		),
		s.handleParseBullets,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_steps",
			mcp.WithDescription("List the need-analysis wizard steps with their fields"),
		),
		s.handleListSteps,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("suggest",
			mcp.WithDescription("Suggest skills, benefits, recruitment steps or tasks for a job title"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum(ai.SuggestionKinds...)),
			mcp.WithString("job_title", mcp.Required(), mcp.Description("Job title, letters, digits and spaces only")),
		),
		s.handleSuggest,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("generate_job_ad",
			mcp.WithDescription("Generate a job advertisement from need-analysis answers"),
			mcp.WithObject("answers", mcp.Required(),
				mcp.Description("Wizard answers keyed by field name; lists as arrays, ranges as {min,max}")),
			mcp.WithString("style", mcp.Description("Writing style, e.g. professional or casual")),
			mcp.WithString("language", mcp.Description("Output language, e.g. English or German")),
		),
		s.handleGenerateJobAd,
	)
}

func (s *Server) handleParseBullets(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	text, ok := args["text"].(string)
	if !ok {
		return mcp.NewToolResultError("missing 'text' parameter"), nil
	}
	limit := 0
	// JSON numbers come as float64
	if v, ok := args["limit"].(float64); ok {
		if v < 0 {
			return mcp.NewToolResultError("'limit' must not be negative"), nil
		}
		limit = int(v)
	}
	return jsonResult(map[string]any{"items": parse.CollectBullets(text, limit)})
}

func (s *Server) handleListSteps(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(session.DescribeSteps(s.steps))
}

func (s *Server) handleSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	kind, _ := args["kind"].(string)
	jobTitle, _ := args["job_title"].(string)
	if !slices.Contains(ai.SuggestionKinds, kind) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown suggestion kind %q, expected one of %s",
			kind, strings.Join(ai.SuggestionKinds, ", "))), nil
	}
	if s.generator == nil {
		return mcp.NewToolResultError("no language model configured"), nil
	}

	suggestions, err := s.generator.Suggest(ctx, kind, jobTitle)
	if err != nil {
		return s.toolError("suggest", err), nil
	}
	return jsonResult(suggestions)
}

func (s *Server) handleGenerateJobAd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["answers"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("'answers' must be an object"), nil
	}
	form, err := formFromArguments(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.generator == nil {
		return mcp.NewToolResultError("no language model configured"), nil
	}

	opts := types.GenerateOptions{}
	opts.Style, _ = args["style"].(string)
	opts.Language, _ = args["language"].(string)

	artifact, err := s.generator.Generate(ctx, ai.KindJobAd, form, opts, nil)
	if err != nil {
		return s.toolError("generate_job_ad", err), nil
	}
	return mcp.NewToolResultText(artifact.Content), nil
}

// formFromArguments decodes tool arguments the same way answer files are decoded
func formFromArguments(raw map[string]any) (wizard.FormState, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid answers: %w", err)
	}
	var form wizard.FormState
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("invalid answers: %w", err)
	}
	return form, nil
}

// toolError reports a failed call to the agent; the empty-result case keeps
// its fixed message
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.LogError(err, "Tool call failed", "tool", tool)
	if appErr, ok := errors.As(err); ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", appErr.Code, appErr.Message))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
