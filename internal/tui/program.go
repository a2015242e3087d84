package tui

import (
	"fmt"

	"mentorctl/internal/model"
	"mentorctl/pkg/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// NewProgram creates the Bubble Tea program for run.
func NewProgram(run Run, logs <-chan logging.LogEntry) *tea.Program {
	return tea.NewProgram(NewModel(run, logs), tea.WithAltScreen())
}

// RunView shows run until the user quits and returns the last snapshot. When
// the user quits early the run is cancelled and RunView waits for it.
func RunView(run Run, logs <-chan logging.LogEntry) (model.TestSuite, error) {
	if _, err := NewProgram(run, logs).Run(); err != nil {
		run.Cancel()
		<-run.Done()
		return run.Snapshot(), fmt.Errorf("failed to run TUI: %w", err)
	}
	<-run.Done()
	return run.Snapshot(), nil
}
