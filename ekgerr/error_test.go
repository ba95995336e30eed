package ekgerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New("store", "execute", ErrCodeQueryFailed, "query rejected"),
			want: "store [execute/QUERY_FAILED]: query rejected",
		},
		{
			name: "with cause",
			err:  New("store", "connect", ErrCodeStoreUnavailable, "dial failed").WithCause(errors.New("connection refused")),
			want: "store [connect/STORE_UNAVAILABLE]: dial failed: connection refused",
		},
		{
			name: "no message",
			err:  New("journal", "acquire", ErrCodeInvalidInput, ""),
			want: "journal [acquire/INVALID_INPUT]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := New("store", "execute", ErrCodeQueryFailed, "timed out").WithCause(cause)
	wrapped := fmt.Errorf("phase 1: %w", err)

	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, errors.Is(wrapped, &Error{Code: ErrCodeQueryFailed}))
	assert.False(t, errors.Is(wrapped, &Error{Code: ErrCodeFatalBatch}))
	assert.False(t, errors.Is(wrapped, &Error{Component: "journal", Code: ErrCodeQueryFailed}))

	var target *Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "execute", target.Operation)
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ""},
		{"pattern", &MalformedPatternError{Fragment: "(a", Reason: "unclosed"}, ErrorClassSemantic},
		{"schema", fmt.Errorf("load: %w", &SchemaValidationError{Type: "Order", Reason: "x"}), ErrorClassSemantic},
		{"compile", &TemplateCompilationError{Constructor: "Order#0", Name: "x", Reason: "unbound"}, ErrorClassSemantic},
		{"fatal batch", &FatalBatchError{Template: "t", Attempts: 10}, ErrorClassPermanent},
		{"store down", New("store", "connect", ErrCodeStoreUnavailable, ""), ErrorClassInfrastructure},
		{"explicit class", New("store", "x", ErrCodeQueryFailed, "").WithClass(ErrorClassPermanent), ErrorClassPermanent},
		{"canceled", context.Canceled, ErrorClassTransient},
		{"plain", errors.New("boom"), ErrorClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassOf(tt.err))
		})
	}
}

func TestFatalBatchError(t *testing.T) {
	err := &FatalBatchError{
		Template:  "nodes_by_record:Order",
		Attempts:  10,
		BatchSize: 10000,
		Messages:  []string{"LockClient timeout", "deadlock"},
	}
	assert.Equal(t, "batch nodes_by_record:Order: maximum attempts reached (10, batch size 10000): LockClient timeout; deadlock", err.Error())
	assert.False(t, IsTransient(err))

	var fb *FatalBatchError
	require.True(t, errors.As(fmt.Errorf("wrap: %w", err), &fb))
	assert.Equal(t, 10, fb.Attempts)
}

func TestTypedErrorMessages(t *testing.T) {
	assert.Equal(t, `malformed pattern "[x" in "(a)-[x": unclosed bracket`,
		(&MalformedPatternError{Fragment: "[x", Pattern: "(a)-[x", Reason: "unclosed bracket"}).Error())
	assert.Equal(t, `compile Order#0: name not bound by any pattern: "y"`,
		(&TemplateCompilationError{Constructor: "Order#0", Name: "y", Reason: "name not bound by any pattern"}).Error())
	assert.Equal(t, `schema: type "Order": relation endpoint label "Cust" is not declared`,
		(&SchemaValidationError{Type: "Order", Reason: `relation endpoint label "Cust" is not declared`}).Error())
}
