package formatters

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"vacalyser/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("yaml", "any", &YAMLFormatter{})
	registry.RegisterFormatter("text", "Artifact", &ArtifactTextFormatter{})
	registry.RegisterFormatter("markdown", "Artifact", &ArtifactMarkdownFormatter{})
	registry.RegisterFormatter("text", "Suggestions", &SuggestionsTextFormatter{})
	registry.RegisterFormatter("markdown", "Suggestions", &SuggestionsMarkdownFormatter{})
	registry.RegisterFormatter("text", "StepList", &StepListTextFormatter{})
	registry.RegisterFormatter("markdown", "StepList", &StepListMarkdownFormatter{})
	registry.RegisterFormatter("text", "ExtractResult", &ExtractTextFormatter{})
	registry.RegisterFormatter("markdown", "ExtractResult", &ExtractTextFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(deref(data))
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats in sorted order
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	return slices.Sorted(maps.Keys(fr.formatters))
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Artifact, *types.Artifact:
		return "Artifact"
	case types.Suggestions, *types.Suggestions:
		return "Suggestions"
	case types.StepList, *types.StepList:
		return "StepList"
	case types.ExtractResult, *types.ExtractResult:
		return "ExtractResult"
	default:
		return "any"
	}
}

// deref lets typed formatters accept pointers to the known types
func deref(data any) any {
	switch v := data.(type) {
	case *types.Artifact:
		return *v
	case *types.Suggestions:
		return *v
	case *types.StepList:
		return *v
	case *types.ExtractResult:
		return *v
	}
	return data
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// YAMLFormatter handles YAML formatting for any data type
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	out, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return "any"
}

// ArtifactTextFormatter prints the artifact content as the plain-text download
type ArtifactTextFormatter struct{}

func (atf *ArtifactTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.Artifact)
	if !ok {
		return "", fmt.Errorf("expected Artifact, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== %s ===\n\n", strings.ToUpper(result.Title)))
	output.WriteString(result.Content)
	if !strings.HasSuffix(result.Content, "\n") {
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (atf *ArtifactTextFormatter) SupportedType() string {
	return "Artifact"
}

// ArtifactMarkdownFormatter handles markdown formatting for artifacts
type ArtifactMarkdownFormatter struct{}

func (amf *ArtifactMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.Artifact)
	if !ok {
		return "", fmt.Errorf("expected Artifact, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# %s\n\n", result.Title))
	output.WriteString(result.Content)
	output.WriteString("\n\n---\n\n")
	if result.Model != "" {
		output.WriteString(fmt.Sprintf("*Generated by %s (%s)", result.Model, result.Provider))
	} else {
		output.WriteString("*Generated")
	}
	if !result.GeneratedAt.IsZero() {
		output.WriteString(" on " + result.GeneratedAt.Format("2006-01-02 15:04"))
	}
	output.WriteString("*\n")
	return output.String(), nil
}

func (amf *ArtifactMarkdownFormatter) SupportedType() string {
	return "Artifact"
}

// SuggestionsTextFormatter prints one bullet per suggestion
type SuggestionsTextFormatter struct{}

func (stf *SuggestionsTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.Suggestions)
	if !ok {
		return "", fmt.Errorf("expected Suggestions, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("=== %s: %s ===\n", strings.ToUpper(strings.ReplaceAll(result.Kind, "_", " ")), result.JobTitle))
	if len(result.Items) == 0 {
		output.WriteString("(no suggestions)\n")
		return output.String(), nil
	}
	for _, item := range result.Items {
		output.WriteString(fmt.Sprintf("- %s\n", item))
	}
	return output.String(), nil
}

func (stf *SuggestionsTextFormatter) SupportedType() string {
	return "Suggestions"
}

// SuggestionsMarkdownFormatter groups skills by category when available
type SuggestionsMarkdownFormatter struct{}

func (smf *SuggestionsMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.Suggestions)
	if !ok {
		return "", fmt.Errorf("expected Suggestions, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# Suggested %s for %s\n\n", strings.ReplaceAll(result.Kind, "_", " "), result.JobTitle))

	if len(result.Categories) > 0 {
		for _, category := range slices.Sorted(maps.Keys(result.Categories)) {
			output.WriteString(fmt.Sprintf("## %s\n", category))
			for _, item := range result.Categories[category] {
				output.WriteString(fmt.Sprintf("- %s\n", item))
			}
			output.WriteString("\n")
		}
		return output.String(), nil
	}

	for _, item := range result.Items {
		output.WriteString(fmt.Sprintf("- %s\n", item))
	}
	return output.String(), nil
}

func (smf *SuggestionsMarkdownFormatter) SupportedType() string {
	return "Suggestions"
}

// StepListTextFormatter lists the wizard steps with their fields
type StepListTextFormatter struct{}

func (slf *StepListTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.StepList)
	if !ok {
		return "", fmt.Errorf("expected StepList, got %T", data)
	}

	var output strings.Builder
	for _, step := range result.Steps {
		output.WriteString(fmt.Sprintf("%d. %s (%s)\n", step.Index+1, step.Title, step.Name))
		for _, f := range step.Fields {
			marker := " "
			if f.Required {
				marker = "*"
			}
			output.WriteString(fmt.Sprintf("   %s %-28s %s\n", marker, f.Name, f.Kind))
		}
	}
	return output.String(), nil
}

func (slf *StepListTextFormatter) SupportedType() string {
	return "StepList"
}

// StepListMarkdownFormatter renders one table per step
type StepListMarkdownFormatter struct{}

func (smf *StepListMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.StepList)
	if !ok {
		return "", fmt.Errorf("expected StepList, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Wizard Steps\n\n")
	for _, step := range result.Steps {
		output.WriteString(fmt.Sprintf("## %d. %s\n\n", step.Index+1, step.Title))
		if step.Description != "" {
			output.WriteString(step.Description + "\n\n")
		}
		if len(step.Fields) == 0 {
			continue
		}
		output.WriteString("| Field | Label | Kind | Required |\n|---|---|---|---|\n")
		for _, f := range step.Fields {
			required := ""
			if f.Required {
				required = "yes"
			}
			output.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s |\n", f.Name, f.Label, f.Kind, required))
		}
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (smf *StepListMarkdownFormatter) SupportedType() string {
	return "StepList"
}

// ExtractTextFormatter prints extracted company facts followed by the text
type ExtractTextFormatter struct{}

func (etf *ExtractTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ExtractResult)
	if !ok {
		return "", fmt.Errorf("expected ExtractResult, got %T", data)
	}

	var output strings.Builder
	if len(result.CompanyInfo) > 0 {
		output.WriteString("Company information:\n")
		for _, key := range slices.Sorted(maps.Keys(result.CompanyInfo)) {
			output.WriteString(fmt.Sprintf("- %s: %s\n", key, result.CompanyInfo[key]))
		}
		output.WriteString("\n")
	}
	if result.Salary != nil {
		output.WriteString(fmt.Sprintf("Salary range: %d - %d\n\n", result.Salary.Min, result.Salary.Max))
	}
	if len(result.Sections) > 0 {
		output.WriteString("Sections: " + strings.Join(result.Sections, ", ") + "\n\n")
	}
	output.WriteString(result.Text)
	if !strings.HasSuffix(result.Text, "\n") {
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (etf *ExtractTextFormatter) SupportedType() string {
	return "ExtractResult"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
