package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"vigia/internal/ui"
)

// WatchCmd runs the live session table
type WatchCmd struct{}

// Run executes the watch command
func (w *WatchCmd) Run(cli *CLI) error {
	model := ui.NewWatchModel(cli.Container.Tracker)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
