package ai

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/config"
	"vacalyser/internal/errors"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// fakeProvider returns canned text and records the prompts it received
type fakeProvider struct {
	mu      sync.Mutex
	text    string
	chunks  []string
	err     error
	prompts []PromptRequest
	closed  bool
}

func (f *fakeProvider) Generate(_ context.Context, req PromptRequest, onChunk func(string)) (GeneratedText, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()
	if f.err != nil {
		return GeneratedText{}, f.err
	}
	for _, c := range f.chunks {
		if onChunk != nil {
			onChunk(c)
		}
	}
	return GeneratedText{Text: f.text, Chunks: len(f.chunks), Done: true}, nil
}

func (f *fakeProvider) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: "fake", Provider: "fake", Available: true}
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func (f *fakeProvider) lastPrompt(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.prompts)
	return f.prompts[len(f.prompts)-1].Prompt
}

func newTestService(t *testing.T, p Provider) *Service {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.AI.TokenEstimator = "heuristic"
	svc := NewServiceWithProviders(cfg, map[string]Provider{config.OperationSuggest: p}, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func sampleForm() wizard.FormState {
	return wizard.FormState{
		"company_name": wizard.Text("Acme"),
		"job_title":    wizard.Text("Data Scientist"),
		"hard_skills":  wizard.List("Python", "SQL"),
		"salary_range": wizard.Range(60000, 80000),
		"benefits":     wizard.List("Remote work"),
	}
}

func TestServiceGenerateJobAd(t *testing.T) {
	p := &fakeProvider{text: "  We are hiring!  ", chunks: []string{"We are ", "hiring!"}}
	svc := newTestService(t, p)

	var streamed []string
	art, err := svc.Generate(context.Background(), KindJobAd, sampleForm(),
		types.GenerateOptions{Language: "German"}, func(s string) { streamed = append(streamed, s) })
	require.NoError(t, err)

	assert.Equal(t, "We are hiring!", art.Content)
	assert.Equal(t, "Data Scientist (m/w/d)", art.Title)
	assert.Equal(t, "data-scientist_job_ad.txt", art.FileName)
	assert.Equal(t, []string{"We are ", "hiring!"}, streamed)
	assert.Equal(t, types.GenerateOptions{Style: DefaultStyle, Language: "German", Audience: DefaultAudience}, art.Options)
	require.NotNil(t, art.Usage)
	assert.True(t, art.Usage.Estimated)

	prompt := p.lastPrompt(t)
	assert.Contains(t, prompt, "Job Title: Data Scientist (m/w/d)")
	assert.Contains(t, prompt, "Required Skills: Python, SQL")
	assert.Contains(t, prompt, "Salary Range: 60000 - 80000")
	assert.Contains(t, prompt, "advertisement in German")
	assert.NotContains(t, prompt, "{")
}

func TestServiceGenerateInsufficientData(t *testing.T) {
	p := &fakeProvider{text: "unused"}
	svc := newTestService(t, p)

	art, err := svc.Generate(context.Background(), KindJobAd, wizard.FormState{"location": wizard.Text("Berlin")}, types.GenerateOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, InsufficientDataMessage, art.Content)
	assert.Empty(t, p.prompts, "model must not be called")
}

func TestServiceGenerateEmptyResult(t *testing.T) {
	svc := newTestService(t, &fakeProvider{text: "   "})

	_, err := svc.Generate(context.Background(), KindInterviewPrep, sampleForm(), types.GenerateOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLLMEmptyResult))
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.EmptyResultMessage, appErr.Message)
}

func TestServiceGenerateProviderError(t *testing.T) {
	cause := errors.NewNetworkError(errors.ErrCodeLLMTimeout, "slow", nil)
	svc := newTestService(t, &fakeProvider{err: cause})

	_, err := svc.Generate(context.Background(), KindOnboarding, sampleForm(), types.GenerateOptions{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLLMTimeout))
}

func TestServiceGenerateUnknownKind(t *testing.T) {
	svc := newTestService(t, &fakeProvider{})
	_, err := svc.Generate(context.Background(), "poem", sampleForm(), types.GenerateOptions{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownArtifact))
}

func TestServiceGenerateSummary(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(t, p)

	form := sampleForm()
	form["custom_note"] = wizard.Text("urgent")
	art, err := svc.Generate(context.Background(), KindSummary, form, types.GenerateOptions{}, nil)
	require.NoError(t, err)
	assert.Empty(t, p.prompts)
	assert.Contains(t, art.Content, "- Company name: Acme")
	assert.Contains(t, art.Content, "## Additional information\n- custom_note: urgent")
	assert.Less(t, strings.Index(art.Content, "Acme"), strings.Index(art.Content, "Python"))
}

func TestSummaryEmpty(t *testing.T) {
	assert.Equal(t, "No information collected yet.", Summary(wizard.DefaultSteps(), wizard.FormState{}))
}

func TestServiceSuggest(t *testing.T) {
	answer := "Here are the skills:\n- Python\n- SQL\n* Communication\n• Docker\nThanks"
	p := &fakeProvider{text: answer}
	svc := newTestService(t, p)

	got, err := svc.Suggest(context.Background(), KindSkills, "Data Scientist")
	require.NoError(t, err)

	want := &types.Suggestions{
		Kind:     KindSkills,
		JobTitle: "Data Scientist",
		Items:    []string{"Python", "SQL", "Communication", "Docker"},
	}
	if diff := cmp.Diff(want.Items, got.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	assert.NotEmpty(t, got.Categories)
	assert.Contains(t, p.lastPrompt(t), "'Data Scientist'")
}

func TestServiceSuggestLimitsAndValidation(t *testing.T) {
	var b strings.Builder
	for range 25 {
		b.WriteString("- perk\n")
	}
	svc := newTestService(t, &fakeProvider{text: b.String()})

	got, err := svc.Suggest(context.Background(), KindBenefits, "Nurse")
	require.NoError(t, err)
	assert.Len(t, got.Items, suggestionLimits[KindBenefits])
	assert.Nil(t, got.Categories)

	_, err = svc.Suggest(context.Background(), KindBenefits, "C++ Dev!")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))

	_, err = svc.Suggest(context.Background(), "colors", "Nurse")
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownArtifact))
}

func TestServiceSuggestNoBullets(t *testing.T) {
	svc := newTestService(t, &fakeProvider{text: "I cannot help with that."})
	got, err := svc.Suggest(context.Background(), KindTasks, "Nurse")
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Items)
}

func TestServiceExtractCompanyInfo(t *testing.T) {
	svc := newTestService(t, &fakeProvider{text: "Industry - Retail\nCompany Location: Hamburg\nFounded - 1999"})
	got, err := svc.ExtractCompanyInfo(context.Background(), "About us ...")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"industry": "Retail", "location": "Hamburg"}, got)

	_, err = svc.ExtractCompanyInfo(context.Background(), "  ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
}

func TestServiceTemplateOverride(t *testing.T) {
	p := &fakeProvider{text: "ok"}
	svc := newTestService(t, p)
	svc.cfg.AI.Suggest.Templates.Inline = map[string]string{KindTasks: "Tasks for <{job_title}>"}

	_, err := svc.Suggest(context.Background(), KindTasks, "Nurse")
	require.NoError(t, err)
	assert.Equal(t, "Tasks for <Nurse>", p.lastPrompt(t))
}

func TestServiceRoutesByOperation(t *testing.T) {
	jobAd := &fakeProvider{text: "ad"}
	fallback := &fakeProvider{text: "- a"}
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.AI.TokenEstimator = "heuristic"
	svc := NewServiceWithProviders(cfg, map[string]Provider{
		config.OperationJobAd:   jobAd,
		config.OperationSuggest: fallback,
	}, nil)

	_, err = svc.Generate(context.Background(), KindJobAd, sampleForm(), types.GenerateOptions{}, nil)
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), KindOnboarding, sampleForm(), types.GenerateOptions{}, nil)
	require.NoError(t, err)

	assert.Len(t, jobAd.prompts, 1)
	assert.Len(t, fallback.prompts, 1)

	info := svc.GetModelInfo(context.Background())
	assert.Len(t, info, 2)

	require.NoError(t, svc.Close())
	assert.True(t, jobAd.closed)
	assert.True(t, fallback.closed)
}

func TestNewServiceUnsupportedProvider(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.AI.Provider = "watson"

	_, err = NewService(cfg, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestNewServiceOllama(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	svc, err := NewService(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	stats := svc.Stats()
	assert.Len(t, stats, 3)
}
