package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Palette. Green is the accent; warnings and errors keep their usual
// terminal colours so stock alerts read at a glance.
var (
	ColorText      = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("240")
	ColorAccent    = lipgloss.Color("36")
	ColorOK        = lipgloss.Color("42")
	ColorAlert     = lipgloss.Color("196")
	ColorCaution   = lipgloss.Color("214")
	ColorSelection = lipgloss.Color("236")
)

var (
	StyleDimmed  = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold    = lipgloss.NewStyle().Bold(true).Foreground(ColorText)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorOK)
	StyleError   = lipgloss.NewStyle().Foreground(ColorAlert).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorCaution)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted)
	StyleTitle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).MarginBottom(1)
	StylePrompt = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	StyleTabActive   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	StyleTabInactive = lipgloss.NewStyle().Foreground(ColorMuted).Padding(0, 1)

	// Chat speakers. StyleHuman marks a question the assistant is
	// waiting on.
	StyleUser      = lipgloss.NewStyle().Foreground(ColorMuted).Bold(true)
	StyleAssistant = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	StyleHuman     = lipgloss.NewStyle().Foreground(ColorCaution).Bold(true)

	StyleStatusBar = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleHelpKey   = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	StyleHelpDesc  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// tableStyles is shared by the dashboard and trace tables.
func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorAccent)
	s.Selected = s.Selected.
		Foreground(ColorText).
		Background(ColorSelection).
		Bold(false)
	return s
}
