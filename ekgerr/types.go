package ekgerr

import (
	"fmt"
	"strings"
)

// MalformedPatternError is raised when a pattern string cannot be parsed.
type MalformedPatternError struct {
	// Fragment is the offending part of the input
	Fragment string
	// Pattern is the full input, when different from Fragment
	Pattern string
	// Reason describes what was expected
	Reason string
}

func (e *MalformedPatternError) Error() string {
	if e.Pattern != "" && e.Pattern != e.Fragment {
		return fmt.Sprintf("malformed pattern %q in %q: %s", e.Fragment, e.Pattern, e.Reason)
	}
	return fmt.Sprintf("malformed pattern %q: %s", e.Fragment, e.Reason)
}

func (e *MalformedPatternError) Code() string { return ErrCodeMalformedPattern }
func (e *MalformedPatternError) ErrorClass() ErrorClass { return ErrorClassSemantic }

// SchemaValidationError is raised when a schema document is inconsistent.
type SchemaValidationError struct {
	// Type is the offending entity type or record name
	Type string
	// Reason describes the inconsistency
	Reason string
	// Cause is set when the failure comes from a nested parse error
	Cause error
}

func (e *SchemaValidationError) Error() string {
	msg := fmt.Sprintf("schema: type %q: %s", e.Type, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SchemaValidationError) Unwrap() error { return e.Cause }
func (e *SchemaValidationError) Code() string { return ErrCodeSchemaValidation }
func (e *SchemaValidationError) ErrorClass() ErrorClass { return ErrorClassSemantic }

// TemplateCompilationError is raised when a constructor cannot be turned
// into a query template.
type TemplateCompilationError struct {
	// Constructor identifies the constructor ("Type#index")
	Constructor string
	// Name is the unbound or invalid name, if any
	Name string
	// Reason describes the failure
	Reason string
}

func (e *TemplateCompilationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("compile %s: %s: %q", e.Constructor, e.Reason, e.Name)
	}
	return fmt.Sprintf("compile %s: %s", e.Constructor, e.Reason)
}

func (e *TemplateCompilationError) Code() string { return ErrCodeTemplateCompilation }
func (e *TemplateCompilationError) ErrorClass() ErrorClass { return ErrorClassSemantic }

// FatalBatchError is raised when a batched query still reports failures
// after the attempt ceiling. It is never retried further.
type FatalBatchError struct {
	// Template is the name of the query template that failed
	Template string
	// Attempts is the number of attempts made
	Attempts int
	// BatchSize is the batch size used on the last attempt
	BatchSize int
	// Messages are the error messages reported by the store
	Messages []string
	// Cause is the last store error, if the last attempt errored outright
	Cause error
}

func (e *FatalBatchError) Error() string {
	msg := fmt.Sprintf("batch %s: maximum attempts reached (%d, batch size %d)", e.Template, e.Attempts, e.BatchSize)
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FatalBatchError) Unwrap() error { return e.Cause }
func (e *FatalBatchError) Code() string { return ErrCodeFatalBatch }
func (e *FatalBatchError) ErrorClass() ErrorClass { return ErrorClassPermanent }
