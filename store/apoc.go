package store

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/ekgerr"
)

const (
	commitQuery = `CALL apoc.periodic.commit($statement, $params)
YIELD updates, executions, batches, failedBatches, batchErrors, failedCommits, commitErrors, wasTerminated
RETURN updates, executions, batches, failedBatches, batchErrors, failedCommits, commitErrors, wasTerminated`

	iterateQuery = `CALL apoc.periodic.iterate($source, $action, {batchSize: $batchSize, parallel: false, params: $params})
YIELD batches, total, committedOperations, failedOperations, failedBatches, errorMessages, wasTerminated
RETURN batches, total, committedOperations, failedOperations, failedBatches, errorMessages, wasTerminated`
)

// wrap builds the APOC call for a batched request.
func wrap(req batch.Request) (string, map[string]any, error) {
	params := maps.Clone(req.Params)
	if params == nil {
		params = map[string]any{}
	}

	switch req.Mode {
	case cypher.ModeCommit:
		params[cypher.LimitParam] = req.BatchSize
		return commitQuery, map[string]any{
			"statement": req.Query,
			"params":    params,
		}, nil
	case cypher.ModeIterate:
		params[cypher.BatchSizeParam] = req.BatchSize
		return iterateQuery, map[string]any{
			"source":    req.Source,
			"action":    req.Query,
			"batchSize": req.BatchSize,
			"params":    params,
		}, nil
	default:
		return "", nil, ekgerr.New("store", "run_batched", ekgerr.ErrCodeInvalidInput,
			fmt.Sprintf("mode %s is not batched", req.Mode))
	}
}

// parseReport converts the procedure's result row into a Report. A
// terminated operation counts as a failed batch.
func parseReport(mode cypher.Mode, row map[string]any) batch.Report {
	r := batch.Report{
		Batches:       toInt64(row["batches"]),
		FailedBatches: toInt64(row["failedBatches"]),
	}
	if mode == cypher.ModeCommit {
		r.FailedBatches += toInt64(row["failedCommits"])
		r.Total = toInt64(row["updates"])
		r.Committed = r.Total
		r.ErrorMessages = errorKeys(row["batchErrors"], row["commitErrors"])
	} else {
		r.Total = toInt64(row["total"])
		r.Committed = toInt64(row["committedOperations"])
		r.ErrorMessages = errorKeys(row["errorMessages"])
	}
	if terminated, _ := row["wasTerminated"].(bool); terminated {
		r.FailedBatches++
		r.ErrorMessages = append(r.ErrorMessages, "operation was terminated")
	}
	return r
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// errorKeys returns the sorted distinct messages of APOC error maps, which
// map each message to its number of occurrences.
func errorKeys(sources ...any) []string {
	var out []string
	for _, m := range sources {
		errs, ok := m.(map[string]any)
		if !ok {
			continue
		}
		for msg := range errs {
			if !slices.Contains(out, msg) {
				out = append(out, msg)
			}
		}
	}
	slices.Sort(out)
	return out
}
