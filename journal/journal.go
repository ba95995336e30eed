package journal

import (
	"context"
	"errors"
	"time"
)

// ErrRunLocked is returned by Acquire while another run holds the lock.
var ErrRunLocked = errors.New("another run holds the lock")

// Kind names an event.
type Kind string

const (
	KindRunStarted    Kind = "run_started"
	KindPhaseStarted  Kind = "phase_started"
	KindStepFinished  Kind = "step_finished"
	KindPhaseFinished Kind = "phase_finished"
	KindRunFinished   Kind = "run_finished"
	KindRunFailed     Kind = "run_failed"
)

// Event is one journal entry.
type Event struct {
	RunID       string    `json:"run_id"`
	Kind        Kind      `json:"kind"`
	Phase       string    `json:"phase,omitempty"`
	Type        string    `json:"type,omitempty"`
	Constructor string    `json:"constructor,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	BatchSize   int       `json:"batch_size,omitempty"`
	Rows        int64     `json:"rows,omitempty"`
	Error       string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

// Journal records runs and serializes them with a lock.
type Journal interface {
	// Acquire takes the run lock for runID. It fails with ErrRunLocked if
	// another run holds it.
	Acquire(ctx context.Context, runID string, ttl time.Duration) error

	// Release gives up the lock if runID holds it.
	Release(ctx context.Context, runID string) error

	// Record appends an event to its run's log.
	Record(ctx context.Context, ev Event) error

	// Events returns a run's events in the order they were recorded.
	Events(ctx context.Context, runID string) ([]Event, error)

	// Close releases resources held by the journal.
	Close() error
}

// NopJournal grants every lock and discards events.
type NopJournal struct{}

func (NopJournal) Acquire(context.Context, string, time.Duration) error { return nil }
func (NopJournal) Release(context.Context, string) error { return nil }
func (NopJournal) Record(context.Context, Event) error { return nil }
func (NopJournal) Events(context.Context, string) ([]Event, error) { return nil, nil }
func (NopJournal) Close() error { return nil }
