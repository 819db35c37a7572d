package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chaz8081/fossleep-lamp/internal/session"
)

// SessionMsg carries a session snapshot into the program.
type SessionMsg struct {
	Snapshot session.Snapshot
}

// splashDoneMsg fires once when the splash timer expires.
type splashDoneMsg struct{}

// revealMsg uncovers the next control panel section.
type revealMsg struct{}

const revealInterval = 120 * time.Millisecond

func splashTimer(d time.Duration) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return splashDoneMsg{} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return splashDoneMsg{} })
}

func revealTick() tea.Cmd {
	return tea.Tick(revealInterval, func(time.Time) tea.Msg { return revealMsg{} })
}
