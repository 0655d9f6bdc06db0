package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"vigia/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	columnStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	statusStyles = map[domain.Status]lipgloss.Style{
		domain.StatusActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		domain.StatusPaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		domain.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		domain.StatusOrphaned:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.StatusStale:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		domain.StatusAbandoned: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

// renderStatus colours a status for the table, padding before styling
// so the ANSI codes don't break column alignment
func renderStatus(status domain.Status, width int) string {
	padded := fmt.Sprintf("%-*s", width, status)
	style, ok := statusStyles[status]
	if !ok {
		return padded
	}
	return style.Render(padded)
}
