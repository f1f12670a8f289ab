package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

type fakeGenerator struct {
	kinds []string
	form  wizard.FormState
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, kind string, form wizard.FormState, _ types.GenerateOptions, _ func(string)) (*types.Artifact, error) {
	f.kinds = append(f.kinds, kind)
	f.form = form
	if f.err != nil {
		return nil, f.err
	}
	return &types.Artifact{
		Kind:     kind,
		Title:    "Job ad",
		Content:  "We are hiring.",
		FileName: "data-scientist_job_ad.txt",
	}, nil
}

func testSteps() []wizard.Step {
	return []wizard.Step{
		{
			Name: "role", Title: "Role",
			Required: []string{"job_title"},
			Fields: []wizard.Field{
				{Name: "job_title", Label: "Job title", Kind: wizard.KindText},
				{Name: "skills", Label: "Skills", Kind: wizard.KindList},
			},
		},
		{Name: "summary", Title: "Summary"},
	}
}

func newTestModel(t *testing.T, gen Generator) Model {
	t.Helper()
	m, err := NewModel(context.Background(), Options{
		Steps:        testSteps(),
		Generator:    gen,
		OutputDir:    t.TempDir(),
		GlamourStyle: "notty",
	})
	require.NoError(t, err)
	return m
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func typed(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	ctrlN = tea.KeyMsg{Type: tea.KeyCtrlN}
	ctrlB = tea.KeyMsg{Type: tea.KeyCtrlB}
	ctrlR = tea.KeyMsg{Type: tea.KeyCtrlR}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
)

// runCmd executes cmd and feeds every resulting message back into the model
func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			m = runCmd(t, m, c)
		}
		return m
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestAdvanceShowsMissingFields(t *testing.T) {
	m := newTestModel(t, &fakeGenerator{})

	m, _ = press(t, m, ctrlN)
	assert.Equal(t, 0, m.wizard.Index())
	assert.Contains(t, m.errMsg, "Job title")
	assert.Contains(t, m.View(), "Job title")
}

func TestAdvanceAndRetreatKeepAnswers(t *testing.T) {
	m := newTestModel(t, &fakeGenerator{})

	m, _ = press(t, m, typed("Data Scientist"), tab, typed("python, sql"), ctrlN)
	require.Equal(t, 1, m.wizard.Index())
	assert.Empty(t, m.errMsg)
	assert.Equal(t, []string{"python", "sql"}, m.Form()["skills"].List())
	assert.Contains(t, m.View(), "Data Scientist", "summary lists the answers")

	m, _ = press(t, m, ctrlB)
	require.Equal(t, 0, m.wizard.Index())
	assert.Equal(t, "Data Scientist", m.inputs[0].Value())
	assert.Equal(t, "python, sql", m.inputs[1].Value())

	m, _ = press(t, m, ctrlR)
	assert.Equal(t, 0, m.wizard.Index())
	assert.Empty(t, m.Form())
	assert.Empty(t, m.inputs[0].Value())
}

func TestGenerateAndSave(t *testing.T) {
	gen := &fakeGenerator{}
	m := newTestModel(t, gen)
	m, _ = press(t, m, typed("Data Scientist"), ctrlN)
	require.True(t, m.wizard.IsTerminal())

	m, cmd := press(t, m, typed("s"))
	assert.Contains(t, m.errMsg, "Nothing to save")
	assert.Nil(t, cmd)

	m, cmd = press(t, m, typed("g"))
	assert.True(t, m.generating)
	m = runCmd(t, m, cmd)
	assert.False(t, m.generating)
	require.NotNil(t, m.Artifact())
	assert.Equal(t, []string{"job_ad"}, gen.kinds)
	assert.Equal(t, "Data Scientist", gen.form.Text("job_title"))
	assert.Contains(t, m.View(), "We are hiring.")

	m, cmd = press(t, m, typed("s"))
	m = runCmd(t, m, cmd)
	assert.Empty(t, m.errMsg)

	data, err := os.ReadFile(filepath.Join(m.outDir, "data-scientist_job_ad.txt"))
	require.NoError(t, err)
	assert.Equal(t, "We are hiring.", string(data))
}

func TestGenerateErrorShownInline(t *testing.T) {
	m := newTestModel(t, &fakeGenerator{err: assert.AnError})
	m, _ = press(t, m, typed("Data Scientist"), ctrlN)

	m, cmd := press(t, m, typed("g"))
	m = runCmd(t, m, cmd)
	assert.Nil(t, m.Artifact())
	assert.Equal(t, assert.AnError.Error(), m.errMsg)
}

func TestInvalidNumberIsRejected(t *testing.T) {
	m, err := NewModel(context.Background(), Options{
		Steps: []wizard.Step{
			{Name: "team", Fields: []wizard.Field{{Name: "team_size", Label: "Team size", Kind: wizard.KindNumber}}},
			{Name: "summary"},
		},
		GlamourStyle: "notty",
	})
	require.NoError(t, err)

	m, _ = press(t, m, typed("many"), ctrlN)
	assert.Equal(t, 0, m.wizard.Index())
	assert.Contains(t, m.errMsg, "Team size")
}
