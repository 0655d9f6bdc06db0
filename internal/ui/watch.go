package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"vigia/internal/domain"
	"vigia/internal/services"
)

const refreshInterval = 2 * time.Second

// watchKeys are the key bindings of the watch view
type watchKeys struct {
	Quit    key.Binding
	Refresh key.Binding
}

func newWatchKeys() watchKeys {
	return watchKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

type tickMsg time.Time

type sessionsMsg struct {
	err      error
	sessions []domain.Session
}

// WatchModel is a live read-only table of the working set. It reads
// outside the transaction fast path, so it may trail a writer by one
// refresh.
type WatchModel struct {
	err      error
	keys     watchKeys
	lastLoad time.Time
	sessions []domain.Session
	tracker  *services.Tracker
	width    int
}

// NewWatchModel creates a new WatchModel
func NewWatchModel(tracker *services.Tracker) WatchModel {
	return WatchModel{
		keys:    newWatchKeys(),
		tracker: tracker,
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.loadSessions, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadSessions fetches the current view of the working set
func (m WatchModel) loadSessions() tea.Msg {
	sessions, err := m.tracker.List(context.Background(), services.ListFilter{})
	return sessionsMsg{err: err, sessions: sessions}
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.loadSessions
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		return m, tea.Batch(m.loadSessions, tick())

	case sessionsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.sessions = msg.sessions
			m.lastLoad = time.Now()
		}
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("vigia — sessions"))
	if !m.lastLoad.IsZero() {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  refreshed %s", m.lastLoad.Format("15:04:05"))))
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		b.WriteString("\n")
	}

	if len(m.sessions) == 0 {
		b.WriteString(dimStyle.Render("no sessions in the working set"))
		b.WriteString("\n")
	} else {
		b.WriteString(columnStyle.Render(fmt.Sprintf("%-36s %-20s %-12s %-7s %-9s %s",
			"ID", "NAME", "ROLE", "PHASE", "STATUS", "UPDATED")))
		b.WriteString("\n")
		for _, s := range m.sessions {
			b.WriteString(fmt.Sprintf("%-36s %-20s %-12s %-7s %s %s\n",
				s.ID,
				truncate(s.Name, 20),
				truncate(s.Role, 12),
				s.Phase,
				renderStatus(s.Status, 9),
				s.UpdatedAt.Format("15:04:05")))
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("r refresh · q quit"))
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
