package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the shell on the terminal and blocks until the user quits or
// ctx is cancelled. Any run still in flight is cancelled on exit.
func Run(ctx context.Context, eng Submitter, copier Copier) (Model, error) {
	p := tea.NewProgram(New(eng, copier), tea.WithContext(ctx))
	final, err := p.Run()

	m, _ := final.(Model)
	if m.run != nil {
		m.run.Cancel()
	}
	return m, err
}
