package tui

import (
	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/session"
	tea "github.com/charmbracelet/bubbletea"
)

// Options are the collaborators behind the views.
type Options struct {
	Runner    session.Runner
	Dashboard Dashboard
	// Runs feeds the trace view; nil disables it.
	Runs RunLister
	// Human receives the agent's questions to the user; nil means the
	// agent's ask_human tool is wired to something else.
	Human   *agent.ChannelHuman
	LogPath string
	Title   string
}

// Start launches the TUI and blocks until the user quits.
func Start(opts Options) error {
	p := tea.NewProgram(NewApp(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
