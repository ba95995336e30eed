package batch

import (
	"context"

	"github.com/zero-day-ai/ekg/cypher"
)

// Row is one result row, keyed by column name.
type Row = map[string]any

// Request describes one store-managed batched operation.
type Request struct {
	// Mode is cypher.ModeCommit or cypher.ModeIterate
	Mode cypher.Mode
	// Query is the commit statement or the iterate action
	Query string
	// Source is the row source of an iterate operation
	Source    string
	Params    map[string]any
	BatchSize int
}

// Report is the store's account of a batched operation.
type Report struct {
	Batches       int64
	FailedBatches int64
	// Total is the number of rows or statement runs processed
	Total int64
	// Committed is the number of successfully committed operations
	Committed     int64
	ErrorMessages []string
}

// Failed reports whether any batch failed.
func (r Report) Failed() bool {
	return r.FailedBatches > 0
}

// Executor runs queries on a store.
type Executor interface {
	// Execute runs a query once and returns its rows.
	Execute(ctx context.Context, query string, params map[string]any) ([]Row, error)
	// RunBatched runs a batched operation and reports per-batch outcomes.
	RunBatched(ctx context.Context, req Request) (Report, error)
}

// Session is an Executor bound to one store session for the duration of a
// run.
type Session interface {
	Executor
	Close(ctx context.Context) error
}
