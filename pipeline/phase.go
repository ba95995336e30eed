package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is one step of the construction order.
type Phase int

const (
	// PhasePrepare creates indexes. It is not part of the construction order
	// and only runs when requested.
	PhasePrepare Phase = iota
	PhaseNodesFromRecords
	PhaseRelationsFromRecords
	PhaseRelationsFromSubgraphs
	PhaseNodesFromSubgraphs
	PhaseDirectlyFollows
	PhaseMergeDuplicateDF
	PhaseDeleteParallelDF
)

var phaseNames = map[Phase]string{
	PhasePrepare:                "prepare",
	PhaseNodesFromRecords:       "node_by_record",
	PhaseRelationsFromRecords:   "relation_by_record",
	PhaseRelationsFromSubgraphs: "relation_by_subgraph",
	PhaseNodesFromSubgraphs:     "node_by_subgraph",
	PhaseDirectlyFollows:        "infer_df",
	PhaseMergeDuplicateDF:       "merge_duplicate_df",
	PhaseDeleteParallelDF:       "delete_parallel_df",
}

// String returns the phase name.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Phases returns the construction phases in dependency order.
func Phases() []Phase {
	return []Phase{
		PhaseNodesFromRecords,
		PhaseRelationsFromRecords,
		PhaseRelationsFromSubgraphs,
		PhaseNodesFromSubgraphs,
		PhaseDirectlyFollows,
		PhaseMergeDuplicateDF,
		PhaseDeleteParallelDF,
	}
}

// ParsePhase accepts a phase number (1-7) or name.
func ParsePhase(s string) (Phase, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= int(PhaseNodesFromRecords) && n <= int(PhaseDeleteParallelDF) {
			return Phase(n), nil
		}
		return 0, fmt.Errorf("phase %d out of range 1-7", n)
	}
	for p, name := range phaseNames {
		if p != PhasePrepare && strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// ordered reports whether phases respect the dependency order.
func ordered(phases []Phase) bool {
	for i := 1; i < len(phases); i++ {
		if phases[i] <= phases[i-1] {
			return false
		}
	}
	return true
}
