package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/nl2sql"
)

var (
	// ErrToolDispatch marks a tool that could not be run at all.
	ErrToolDispatch = errors.New("tool dispatch failed")
	// ErrParse marks model output that is not a valid action.
	ErrParse = errors.New("unparseable model output")
	// ErrValidation marks tool arguments that do not fit the tool's schema.
	ErrValidation = errors.New("invalid tool input")
)

// ParseError wraps a model reply that could not be read as an action.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", ErrParse, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Error types reported in Result.ErrorType.
const (
	TypeEmbeddingUnavailable = "EmbeddingUnavailable"
	TypeSchemaUnavailable    = "SchemaUnavailable"
	TypeSynthesis            = "SynthesisError"
	TypeSafetyRejected       = "SafetyRejected"
	TypeExecution            = "ExecutionError"
	TypeRephrase             = "RephraseError"
	TypeToolDispatch         = "ToolDispatchError"
	TypeParse                = "ParseError"
	TypeValidation           = "ValidationError"
	TypeTimeout              = "Timeout"
	TypeCanceled             = "Canceled"
	TypeInternal             = "InternalError"
)

// Classify maps an error to its machine-readable type. nil maps to "".
func Classify(err error) string {
	var execErr *db.ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return TypeTimeout
	case errors.Is(err, context.Canceled):
		return TypeCanceled
	case errors.Is(err, nl2sql.ErrEmbeddingUnavailable):
		return TypeEmbeddingUnavailable
	case errors.Is(err, nl2sql.ErrSchemaUnavailable):
		return TypeSchemaUnavailable
	case errors.Is(err, nl2sql.ErrSynthesis):
		return TypeSynthesis
	case errors.Is(err, nl2sql.ErrSafetyRejected):
		return TypeSafetyRejected
	case errors.Is(err, nl2sql.ErrExecution), errors.As(err, &execErr):
		return TypeExecution
	case errors.Is(err, nl2sql.ErrRephrase):
		return TypeRephrase
	case errors.Is(err, ErrValidation), errors.Is(err, db.ErrInvalidProduct):
		return TypeValidation
	case errors.Is(err, ErrToolDispatch):
		return TypeToolDispatch
	case errors.Is(err, ErrParse):
		return TypeParse
	default:
		return TypeInternal
	}
}
