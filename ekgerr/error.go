package ekgerr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	// ErrCodeMalformedPattern indicates a pattern string could not be parsed
	ErrCodeMalformedPattern = "MALFORMED_PATTERN"

	// ErrCodeSchemaValidation indicates an inconsistent schema document
	ErrCodeSchemaValidation = "SCHEMA_VALIDATION"

	// ErrCodeTemplateCompilation indicates a constructor could not be compiled
	ErrCodeTemplateCompilation = "TEMPLATE_COMPILATION"

	// ErrCodeFatalBatch indicates a batched query exhausted its retries
	ErrCodeFatalBatch = "FATAL_BATCH"

	// ErrCodeStoreUnavailable indicates the graph store could not be reached
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"

	// ErrCodeQueryFailed indicates the store rejected or failed a query
	ErrCodeQueryFailed = "QUERY_FAILED"

	// ErrCodeInvalidInput indicates invalid caller input
	ErrCodeInvalidInput = "INVALID_INPUT"

	// ErrCodeCanceled indicates the run was canceled between phases or attempts
	ErrCodeCanceled = "CANCELED"
)

// Error is a structured error for store, journal and pipeline operations.
type Error struct {
	// Component is the package or subsystem that failed (e.g. "store", "journal")
	Component string

	// Operation is the specific operation that failed
	Operation string

	// Code is one of the ErrCode constants
	Code string

	// Message is a human-readable error message
	Message string

	// Details contains additional context as key-value pairs
	Details map[string]any

	// Cause is the underlying error
	Cause error

	// Class categorizes the error. Zero value means DefaultClassForCode(Code).
	Class ErrorClass
}

// New creates a new structured error.
//
// Example:
//
//	err := ekgerr.New("store", "execute", ekgerr.ErrCodeQueryFailed, "query rejected").
//	    WithCause(driverErr)
func New(component, operation, code, message string) *Error {
	return &Error{
		Component: component,
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// WithCause adds an underlying error and returns the same instance.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails adds context and returns the same instance.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithClass overrides the error class and returns the same instance.
func (e *Error) WithClass(class ErrorClass) *Error {
	e.Class = class
	return e
}

// Error formats as "component [operation/code]: message: cause".
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("%s [%s/%s]", e.Component, e.Operation, e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality on Component, Operation and Code. Empty fields in the
// target act as wildcards so callers can match on code alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Component != "" && t.Component != e.Component {
		return false
	}
	if t.Operation != "" && t.Operation != e.Operation {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// ErrorClass returns the explicit class or the default for the code.
func (e *Error) ErrorClass() ErrorClass {
	if e.Class != "" {
		return e.Class
	}
	return DefaultClassForCode(e.Code)
}

// Sentinel errors
var (
	// ErrInvalidInput is returned when caller input fails validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrCanceled is returned when a run stops at a cancellation point
	ErrCanceled = errors.New("run canceled")
)
