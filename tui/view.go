package tui

import tea "github.com/charmbracelet/bubbletea"

// View is one tab of the app. The App owns the header, tab bar and
// status line; a View only renders its body.
type View interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (View, tea.Cmd)
	View() string

	// Name is the tab label, also used to route TableDataMsg.
	Name() string
	ShortHelp() []KeyBinding
	SetSize(width, height int)

	// WantsTextInput means printable keys go to the view; only tab,
	// shift+tab, f1 and ctrl+c stay global.
	WantsTextInput() bool
}

// KeyBinding is one entry of the help line.
type KeyBinding struct {
	Key  string
	Desc string
}
