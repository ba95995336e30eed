// Package batch executes compiled query templates against a store session,
// retrying partially failed batched operations with smaller batches.
//
// Commit and iterate templates are handed to the store's managed batch
// iteration, which reports how many batches failed. While failures remain
// the engine halves the batch size, never going below the configured
// floor, and reruns the whole operation. After the attempt ceiling it
// returns an ekgerr.FatalBatchError carrying the store's messages. Retrying
// the whole operation is safe because every compiled template is
// idempotent.
//
// Cancellation is checked only before each attempt; an attempt in flight is
// never interrupted by the engine.
package batch
