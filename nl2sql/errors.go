package nl2sql

import (
	"errors"
	"fmt"
)

// Error kinds. Every chain failure matches exactly one of these with
// errors.Is.
var (
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
	ErrSchemaUnavailable    = errors.New("schema introspection failed")
	ErrSynthesis            = errors.New("query synthesis failed")
	ErrSafetyRejected       = errors.New("query rejected by safety gate")
	ErrExecution            = errors.New("query execution failed")
	ErrRephrase             = errors.New("result rephrasing failed")
)

// Stage names one step of the chain.
type Stage string

const (
	StageSelect     Stage = "select"
	StageSchema     Stage = "schema"
	StageSynthesize Stage = "synthesize"
	StageGate       Stage = "gate"
	StageExecute    Stage = "execute"
	StageRephrase   Stage = "rephrase"
)

// StageError reports which stage of the chain failed and why.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the error kind, so errors.Is(err, ErrSynthesis) works
// without unwrapping the cause.
func (e *StageError) Is(target error) bool { return target == e.Kind }

func stageErr(stage Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// SafetyRejectedError carries the statement the gate refused and the
// keyword that matched.
type SafetyRejectedError struct {
	SQL     string
	Keyword string
}

func (e *SafetyRejectedError) Error() string {
	return fmt.Sprintf("restricted operation %s in %q", e.Keyword, e.SQL)
}

func (e *SafetyRejectedError) Is(target error) bool { return target == ErrSafetyRejected }
