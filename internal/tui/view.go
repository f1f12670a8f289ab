package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vacalyser/internal/ai"
	"vacalyser/internal/wizard"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	descStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	focusStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	boxStyle     = lipgloss.NewStyle().Padding(1, 2)
)

func (m Model) View() string {
	step, err := m.wizard.CurrentStep()
	if err != nil {
		return errorStyle.Render(err.Error()) + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(stepTitle(step)),
		descStyle.Render(fmt.Sprintf("step %d of %d", m.wizard.Index()+1, m.wizard.Len())))
	b.WriteString(m.progress.ViewAs(m.wizard.Progress()) + "\n")
	if step.Description != "" {
		b.WriteString(descStyle.Render(step.Description) + "\n")
	}
	b.WriteString("\n")

	if m.wizard.IsTerminal() && len(m.inputs) == 0 {
		b.WriteString(m.summaryView())
	} else {
		b.WriteString(m.fieldsView(step))
	}

	if m.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render(m.errMsg) + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(m.helpLine()))
	return boxStyle.Render(b.String())
}

func (m Model) fieldsView(step wizard.Step) string {
	var b strings.Builder
	for i, f := range step.Fields {
		label := fieldLabel(f)
		if step.IsRequired(f.Name) {
			label += " *"
		}
		style := labelStyle
		if i == m.focus {
			style = focusStyle
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", style.Render(label), m.inputs[i].View())
	}
	return b.String()
}

func (m Model) summaryView() string {
	var doc string
	switch {
	case m.generating:
		return m.spinner.View() + " Generating job ad...\n"
	case m.artifact != nil:
		doc = "# " + m.artifact.Title + "\n\n" + m.artifact.Content
	default:
		doc = ai.Summary(m.wizard.Steps(), m.wizard.Form())
	}
	out, err := m.renderer.Render(doc)
	if err != nil {
		return doc
	}
	return out
}

func (m Model) helpLine() string {
	keys := []string{"ctrl+n next", "ctrl+b back", "ctrl+r reset", "tab/enter next field", "esc quit"}
	if m.wizard.IsTerminal() && len(m.inputs) == 0 {
		keys = []string{"g generate job ad", "s save", "ctrl+b back", "ctrl+r reset", "q quit"}
	}
	return strings.Join(keys, " • ")
}

func stepTitle(step wizard.Step) string {
	if step.Title != "" {
		return step.Title
	}
	return step.Name
}
