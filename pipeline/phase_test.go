package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/schema"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      string
		want    Phase
		wantErr bool
	}{
		{in: "1", want: PhaseNodesFromRecords},
		{in: "7", want: PhaseDeleteParallelDF},
		{in: " 5 ", want: PhaseDirectlyFollows},
		{in: "infer_df", want: PhaseDirectlyFollows},
		{in: "NODE_BY_SUBGRAPH", want: PhaseNodesFromSubgraphs},
		{in: "0", wantErr: true},
		{in: "8", wantErr: true},
		{in: "prepare", wantErr: true},
		{in: "cleanup", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePhase(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhases(t *testing.T) {
	phases := Phases()
	require.Len(t, phases, 7)
	assert.True(t, ordered(phases))
	assert.Equal(t, "node_by_record", phases[0].String())
	assert.Equal(t, "delete_parallel_df", phases[6].String())
	assert.Equal(t, "Phase(42)", Phase(42).String())

	assert.False(t, ordered([]Phase{PhaseDirectlyFollows, PhaseNodesFromRecords}))
	assert.False(t, ordered([]Phase{PhaseDirectlyFollows, PhaseDirectlyFollows}))
}

func TestHookRegistry(t *testing.T) {
	r := NewHookRegistry(nil)
	noop := func(context.Context, *batch.Engine, *schema.ByInference) error { return nil }

	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))
	assert.Error(t, r.Register("a", noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("c", nil))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	_, ok := r.Get("a")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("store down")
	err := &PipelineError{
		RunID:       "r1",
		Phase:       PhaseRelationsFromRecords,
		Type:        "PLACED_BY",
		Constructor: "PLACED_BY#0",
		Err:         cause,
	}

	assert.Equal(t, "run r1: phase relation_by_record, type PLACED_BY, step PLACED_BY#0: store down", err.Error())
	assert.ErrorIs(t, err, cause)

	short := &PipelineError{RunID: "r2", Phase: PhaseDirectlyFollows}
	assert.Equal(t, "run r2: phase infer_df", short.Error())
}
