// Package ekgerr defines the structured errors raised while building an
// event knowledge graph.
//
// # Taxonomy
//
// Four typed errors cover the fatal conditions of a run:
//
//   - MalformedPatternError: a pattern string could not be parsed
//   - SchemaValidationError: a schema document is inconsistent
//   - TemplateCompilationError: a constructor could not be compiled to a query
//   - FatalBatchError: a batched query kept failing after every retry
//
// Store and transport failures are wrapped in the generic Error type with a
// code such as ErrCodeStoreUnavailable. Every error carries an ErrorClass so
// callers can decide whether a re-run is worthwhile:
//
//	if ekgerr.IsTransient(err) {
//	    // safe to re-run later
//	}
//
// All types support errors.Is and errors.As through Unwrap.
package ekgerr
