package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType indicates an allow-list names a type the schema does not
// declare.
var ErrUnknownType = errors.New("unknown type")

// PipelineError reports where a run stopped. The wrapped error is the
// original failure, such as a FatalBatchError carrying the store's
// messages.
type PipelineError struct {
	RunID       string
	Phase       Phase
	Type        string
	Constructor string
	Err         error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: phase %s", e.RunID, e.Phase)
	if e.Type != "" {
		fmt.Fprintf(&b, ", type %s", e.Type)
	}
	if e.Constructor != "" {
		fmt.Fprintf(&b, ", step %s", e.Constructor)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}
