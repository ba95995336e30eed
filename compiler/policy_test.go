package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/schema"
)

func TestPolicy_Default(t *testing.T) {
	order := &schema.EntityType{Name: "Order"}
	event := &schema.EntityType{Name: "Event", EventLike: true}
	attr := &schema.EntityType{Name: "Attr", AttributeLike: true}

	tests := []struct {
		name        string
		typ         *schema.EntityType
		cardinality int64
		want        Strategy
	}{
		{name: "below threshold", typ: order, cardinality: 999, want: MergeFirst},
		{name: "at threshold", typ: order, cardinality: 1000, want: CreateThenMerge},
		{name: "above threshold", typ: order, cardinality: 1001, want: CreateThenMerge},
		{name: "event-like small", typ: event, cardinality: 1, want: CreateThenMerge},
		{name: "event-like large", typ: event, cardinality: 1_000_000, want: CreateThenMerge},
		{name: "attribute-like", typ: attr, cardinality: 10, want: CreateThenMerge},
	}

	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Decide(tt.typ, tt.cardinality)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicy_Threshold(t *testing.T) {
	p, err := NewPolicy(50, "")
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.Threshold())

	got, err := p.Decide(&schema.EntityType{Name: "Order"}, 49)
	require.NoError(t, err)
	assert.Equal(t, MergeFirst, got)

	p, err = NewPolicy(0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultMergeThreshold), p.Threshold())
}

func TestPolicy_Expression(t *testing.T) {
	p, err := NewPolicy(0, `type_name == "Order" || (cardinality < threshold && !event_like)`)
	require.NoError(t, err)

	got, err := p.Decide(&schema.EntityType{Name: "Order"}, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, MergeFirst, got)

	got, err = p.Decide(&schema.EntityType{Name: "Event", EventLike: true}, 10)
	require.NoError(t, err)
	assert.Equal(t, CreateThenMerge, got)
}

func TestPolicy_InvalidExpression(t *testing.T) {
	_, err := NewPolicy(0, "cardinality <")
	assert.Error(t, err)

	_, err = NewPolicy(0, "cardinality + 1")
	assert.Error(t, err, "non-boolean expressions are rejected")

	_, err = NewPolicy(0, "unknown_var > 1")
	assert.Error(t, err)
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "merge-first", MergeFirst.String())
	assert.Equal(t, "create-then-merge", CreateThenMerge.String())
}
