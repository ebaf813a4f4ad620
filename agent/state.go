// Package agent runs the tool-calling loop that answers pharmacy staff.
//
// Design decisions:
//   - The loop is an explicit state machine (Idle, AwaitingModel,
//     ToolDispatch, Done, Failed) and every transition is recorded.
//   - The model talks a single JSON action protocol. Anything it says
//     that does not parse is fed back as an observation, not raised.
//   - Two hard bounds keep a run finite: MaxIterations model round-trips
//     plus at most one closing call, and StallLimit consecutive rounds
//     without progress.
//   - The Agent holds no per-conversation state. Callers own the
//     Conversation and serialize runs on it.
package agent

import "time"

// State is a step of the loop.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateToolDispatch
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateToolDispatch:
		return "tool_dispatch"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	Step int       `json:"step"`
	At   time.Time `json:"at"`
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
