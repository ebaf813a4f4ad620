// messages.go defines Bubble Tea messages used for async communication.
//
// Database reads and agent runs send results back to the TUI via these
// message types, so the UI never blocks.
package tui

import (
	"github.com/DachengChen/shelfcare/agent"
)

// AgentResultMsg is sent when an agent run completes.
type AgentResultMsg struct {
	Question string
	Result   *agent.Result
}

// HumanRequestMsg carries a question the agent wants the user to answer.
type HumanRequestMsg agent.HumanRequest

// TableDataMsg carries freshly loaded rows for a dashboard tab.
type TableDataMsg struct {
	Tab  string
	Rows [][]string
	Err  error
}

// RunsMsg carries the recent run log.
type RunsMsg struct {
	Runs []agent.RunRecord
	Err  error
}

// LogMsg carries the tail of the application log.
type LogMsg struct {
	Lines []string
	Err   error
}

// StatusMsg is a transient status message for the status bar.
type StatusMsg string
