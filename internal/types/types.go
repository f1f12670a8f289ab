package types

import "time"

// GenerateOptions tunes the wording of a generated artifact
type GenerateOptions struct {
	Style    string `json:"style,omitempty" yaml:"style,omitempty"`       // e.g. "professional", "casual"
	Language string `json:"language,omitempty" yaml:"language,omitempty"` // e.g. "English", "German"
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty"` // interview guide readers, e.g. "HR"
}

// TokenUsage contains token counts reported by the model or estimated locally
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens" yaml:"inputTokens"`
	OutputTokens int64 `json:"outputTokens" yaml:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens" yaml:"totalTokens"`
	Estimated    bool  `json:"estimated,omitempty" yaml:"estimated,omitempty"`
}

// Artifact is a generated document: job ad, interview guide, onboarding plan
// or the need-analysis summary
type Artifact struct {
	Kind         string          `json:"kind" yaml:"kind"`
	Title        string          `json:"title" yaml:"title"`
	Content      string          `json:"content" yaml:"content"`
	FileName     string          `json:"fileName" yaml:"fileName"`
	Provider     string          `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model        string          `json:"model,omitempty" yaml:"model,omitempty"`
	Options      GenerateOptions `json:"options" yaml:"options"`
	Usage        *TokenUsage     `json:"usage,omitempty" yaml:"usage,omitempty"`
	Chunks       int             `json:"chunks,omitempty" yaml:"chunks,omitempty"`
	SkippedLines int             `json:"skippedLines,omitempty" yaml:"skippedLines,omitempty"`
	GeneratedAt  time.Time       `json:"generatedAt" yaml:"generatedAt"`
}

// Suggestions is a parsed bullet list proposed by the model for one job title
type Suggestions struct {
	Kind       string              `json:"kind" yaml:"kind"`
	JobTitle   string              `json:"jobTitle" yaml:"jobTitle"`
	Items      []string            `json:"items" yaml:"items"`
	Categories map[string][]string `json:"categories,omitempty" yaml:"categories,omitempty"` // skills only
}

// FieldInfo describes one wizard input
type FieldInfo struct {
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label" yaml:"label"`
	Kind     string `json:"kind" yaml:"kind"`
	Help     string `json:"help,omitempty" yaml:"help,omitempty"`
	Required bool   `json:"required" yaml:"required"`
}

// StepInfo describes one wizard step for listings
type StepInfo struct {
	Index       int         `json:"index" yaml:"index"`
	Name        string      `json:"name" yaml:"name"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldInfo `json:"fields" yaml:"fields"`
}

// StepList is the catalog of wizard steps in order
type StepList struct {
	Steps []StepInfo `json:"steps" yaml:"steps"`
}

// SessionView is the externally visible state of a wizard session
type SessionView struct {
	ID        string            `json:"id" yaml:"id"`
	Step      StepInfo          `json:"step" yaml:"step"`
	Cursor    int               `json:"cursor" yaml:"cursor"`
	StepCount int               `json:"stepCount" yaml:"stepCount"`
	Progress  float64           `json:"progress" yaml:"progress"`
	Terminal  bool              `json:"terminal" yaml:"terminal"`
	Form      map[string]any    `json:"form" yaml:"form"`
	Artifacts map[string]string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"` // kind -> file name
	CreatedAt time.Time         `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// ExtractResult is text pulled from a document or web page, with the company
// facts found in it
type ExtractResult struct {
	Source      string            `json:"source" yaml:"source"`
	Text        string            `json:"text" yaml:"text"`
	CompanyInfo map[string]string `json:"companyInfo,omitempty" yaml:"companyInfo,omitempty"`
	Salary      *SalaryRange      `json:"salary,omitempty" yaml:"salary,omitempty"`
	Sections    []string          `json:"sections,omitempty" yaml:"sections,omitempty"` // section titles in document order
}

// SalaryRange is the first "min - max" figure found in a document
type SalaryRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}
