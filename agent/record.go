package agent

import (
	"context"
	"time"
)

// ToolInvocation records one tool call made during a run.
type ToolInvocation struct {
	RunID    string        `json:"run_id"`
	Step     int           `json:"step"`
	Tool     string        `json:"tool"`
	Input    string        `json:"input"`
	Output   string        `json:"output"`
	Err      string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// RunRecord is a finished run as persisted by a RunLog.
type RunRecord struct {
	ID          string
	Question    string
	Output      string
	State       State
	ErrorType   string
	Iterations  int
	Started     time.Time
	Duration    time.Duration
	Invocations []ToolInvocation
}

// RunLog persists finished runs.
type RunLog interface {
	SaveRun(ctx context.Context, run RunRecord) error
}
