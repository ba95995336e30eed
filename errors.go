package ekg

import (
	"errors"
	"io"
	"log/slog"

	"github.com/zero-day-ai/ekg/config"
	"github.com/zero-day-ai/ekg/journal"
	"github.com/zero-day-ai/ekg/pipeline"
)

// Sentinel errors for common conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNotConnected indicates the client was closed or an optional
	// backend (the run journal) is not configured.
	ErrNotConnected = errors.New("not connected")

	// ErrRunLocked indicates another run holds the run lock.
	ErrRunLocked = journal.ErrRunLocked

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = config.ErrInvalid

	// ErrUnknownType indicates an allow-list names a type the schema does not
	// declare.
	ErrUnknownType = pipeline.ErrUnknownType
)

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g., "run
// journal", "export file"). If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer ekg.CloseWithLog(file, logger, "export file")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
