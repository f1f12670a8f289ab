package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the wizard in the alternate screen and blocks until the user
// quits or ctx is cancelled. It returns the final model.
func Run(ctx context.Context, opts Options) (Model, error) {
	m, err := NewModel(ctx, opts)
	if err != nil {
		return Model{}, err
	}

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return m, fmt.Errorf("wizard failed: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm, nil
	}
	return m, nil
}
