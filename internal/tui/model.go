// Package tui is the interactive terminal front end of the need-analysis
// wizard. Each step is shown as a form with one text input per field; the
// summary step renders the collected answers and generates the job ad.
package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"vacalyser/internal/ai"
	"vacalyser/internal/common"
	"vacalyser/internal/errors"
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// Generator produces an artifact from the collected answers
type Generator interface {
	Generate(ctx context.Context, kind string, form wizard.FormState, opts types.GenerateOptions, onChunk func(string)) (*types.Artifact, error)
}

// Options configures a wizard run
type Options struct {
	Steps           []wizard.Step
	Generator       Generator
	GenerateOptions types.GenerateOptions
	OutputDir       string
	// GlamourStyle is a glamour standard style name; empty picks one from the terminal background
	GlamourStyle string
	Logger       *errors.Logger
}

type generatedMsg struct {
	artifact *types.Artifact
	err      error
}

type savedMsg struct {
	path string
	err  error
}

// Model is the bubbletea model of a wizard run
type Model struct {
	ctx      context.Context
	wizard   *wizard.Wizard
	gen      Generator
	genOpts  types.GenerateOptions
	files    *common.FileProcessor
	outDir   string
	renderer *glamour.TermRenderer

	inputs   []textinput.Model
	focus    int
	progress progress.Model
	spinner  spinner.Model

	generating bool
	artifact   *types.Artifact
	errMsg     string
	status     string
	width      int
}

// NewModel builds the model on the first step of opts.Steps
func NewModel(ctx context.Context, opts Options) (Model, error) {
	steps := opts.Steps
	if steps == nil {
		steps = wizard.DefaultSteps()
	}
	w, err := wizard.New(steps)
	if err != nil {
		return Model{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = errors.NewDiscardLogger()
	}

	renderer, err := newRenderer(opts.GlamourStyle, 80)
	if err != nil {
		return Model{}, fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctx:      ctx,
		wizard:   w,
		gen:      opts.Generator,
		genOpts:  opts.GenerateOptions,
		files:    common.NewFileProcessor(logger),
		outDir:   opts.OutputDir,
		renderer: renderer,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner:  sp,
		width:    80,
	}
	m.loadInputs()
	return m, nil
}

func newRenderer(style string, width int) (*glamour.TermRenderer, error) {
	if style == "" {
		return glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	}
	return glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width))
}

// Form returns the answers collected so far
func (m Model) Form() wizard.FormState { return m.wizard.Form() }

// Artifact returns the generated job ad, if any
func (m Model) Artifact() *types.Artifact { return m.artifact }

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case generatedMsg:
		m.generating = false
		if msg.err != nil {
			m.errMsg = errorText(msg.err)
			return m, nil
		}
		m.artifact = msg.artifact
		m.status = "Job ad generated. Press s to save it."
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.errMsg = errorText(msg.err)
		} else {
			m.status = "Saved " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		if !m.generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "ctrl+n":
		return m.advance()
	case "ctrl+b":
		return m.retreat()
	case "ctrl+r":
		return m.reset()
	case "tab", "enter", "down":
		return m.moveFocus(1)
	case "shift+tab", "up":
		return m.moveFocus(-1)
	}

	if m.wizard.IsTerminal() && len(m.inputs) == 0 && !m.generating {
		switch msg.String() {
		case "g":
			return m.generate()
		case "s":
			return m.save()
		case "q":
			return m, tea.Quit
		}
	}
	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(m.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	if len(m.inputs) == 0 {
		return m, nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.inputs)) % len(m.inputs)
	return m, m.inputs[m.focus].Focus()
}

func (m Model) advance() (tea.Model, tea.Cmd) {
	collected, err := m.collect()
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}

	err = m.wizard.Advance(collected)
	var missing *wizard.MissingFieldsError
	switch {
	case stderrors.As(err, &missing):
		m.errMsg = "Please fill in: " + m.labels(missing.Missing)
		return m, nil
	case err != nil:
		m.errMsg = errorText(err)
		return m, nil
	}
	m.errMsg, m.status = "", ""
	return m, m.loadInputs()
}

func (m Model) retreat() (tea.Model, tea.Cmd) {
	// answers typed on this step survive going back
	if collected, err := m.collect(); err == nil {
		m.keep(collected)
	}
	m.wizard.Retreat()
	m.errMsg, m.status = "", ""
	return m, m.loadInputs()
}

func (m Model) reset() (tea.Model, tea.Cmd) {
	m.wizard.Reset()
	m.artifact = nil
	m.errMsg, m.status = "", "Started over."
	return m, m.loadInputs()
}

func (m Model) generate() (tea.Model, tea.Cmd) {
	if m.gen == nil {
		m.errMsg = "no language model configured"
		return m, nil
	}
	m.generating = true
	m.errMsg, m.status = "", ""

	ctx, gen, form, opts := m.ctx, m.gen, m.wizard.Form(), m.genOpts
	run := func() tea.Msg {
		artifact, err := gen.Generate(ctx, ai.KindJobAd, form, opts, nil)
		return generatedMsg{artifact: artifact, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.artifact == nil {
		m.errMsg = "Nothing to save yet. Press g to generate the job ad."
		return m, nil
	}
	path := filepath.Join(m.outDir, m.artifact.FileName)
	files, content := m.files, m.artifact.Content
	return m, func() tea.Msg {
		return savedMsg{path: path, err: files.WriteFile(path, content)}
	}
}

// collect parses the inputs of the current step into form values
func (m Model) collect() (wizard.FormState, error) {
	step, err := m.wizard.CurrentStep()
	if err != nil {
		return nil, err
	}
	form := make(wizard.FormState, len(step.Fields))
	for i, f := range step.Fields {
		if i >= len(m.inputs) {
			break
		}
		v, err := wizard.ParseValue(f.Kind, m.inputs[i].Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fieldLabel(f), err)
		}
		if v.Kind() == "" {
			continue
		}
		form.Set(f.Name, v)
	}
	return form, nil
}

// keep stores values without the required-field check
func (m Model) keep(collected wizard.FormState) {
	snap := m.wizard.Snapshot()
	if snap.Form == nil {
		snap.Form = make(wizard.FormState)
	}
	snap.Form.Merge(collected)
	_ = m.wizard.Restore(snap)
}

// loadInputs replaces the inputs with the fields of the current step, filled
// with the answers given so far
func (m *Model) loadInputs() tea.Cmd {
	step, err := m.wizard.CurrentStep()
	if err != nil {
		m.inputs = nil
		return nil
	}
	form := m.wizard.Form()

	m.inputs = make([]textinput.Model, len(step.Fields))
	m.focus = 0
	for i, f := range step.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.Help
		ti.CharLimit = 500
		ti.Width = 50
		if v, ok := form.Get(f.Name); ok {
			ti.SetValue(v.String())
		}
		m.inputs[i] = ti
	}
	if len(m.inputs) == 0 {
		return nil
	}
	return m.inputs[0].Focus()
}

func (m Model) labels(names []string) string {
	step, _ := m.wizard.CurrentStep()
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name
		if f, ok := step.Field(name); ok {
			out[i] = fieldLabel(f)
		}
	}
	return strings.Join(out, ", ")
}

func fieldLabel(f wizard.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func errorText(err error) string {
	if appErr, ok := errors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
