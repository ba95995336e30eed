package compiler

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/schema"
)

// DefaultMergeThreshold is the cardinality below which merge-first is
// preferred.
const DefaultMergeThreshold = 1000

// Strategy selects how a by-record constructor materializes its results.
type Strategy int

const (
	// MergeFirst looks up each result before creating it.
	MergeFirst Strategy = iota
	// CreateThenMerge creates a result per record and collapses duplicates
	// afterwards.
	CreateThenMerge
)

// String returns the strategy name.
func (s Strategy) String() string {
	if s == CreateThenMerge {
		return "create-then-merge"
	}
	return "merge-first"
}

// Policy decides between merge-first and create-then-merge.
//
// The default rule prefers merge-first when the estimated cardinality is
// below the threshold and the type is neither event-like nor attribute-like.
// An optional CEL expression replaces the rule; it sees the variables
// cardinality, threshold, type_name, event_like and attribute_like and must
// evaluate to true for merge-first.
type Policy struct {
	threshold int64
	expr      string
	program   cel.Program
}

// NewPolicy creates a policy. A non-positive threshold selects the default;
// an empty expression selects the built-in rule.
func NewPolicy(threshold int, expr string) (*Policy, error) {
	p := &Policy{threshold: int64(threshold), expr: expr}
	if p.threshold <= 0 {
		p.threshold = DefaultMergeThreshold
	}
	if expr == "" {
		return p, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("cardinality", cel.IntType),
		cel.Variable("threshold", cel.IntType),
		cel.Variable("type_name", cel.StringType),
		cel.Variable("event_like", cel.BoolType),
		cel.Variable("attribute_like", cel.BoolType),
	)
	if err != nil {
		return nil, ekgerr.New("compiler", "policy", ekgerr.ErrCodeInvalidInput, "create CEL environment").WithCause(err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, ekgerr.New("compiler", "policy", ekgerr.ErrCodeInvalidInput, "compile merge policy expression").
			WithDetails(map[string]any{"expr": expr}).
			WithCause(iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, ekgerr.New("compiler", "policy", ekgerr.ErrCodeInvalidInput,
			fmt.Sprintf("merge policy expression must be boolean, got %s", ast.OutputType()))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, ekgerr.New("compiler", "policy", ekgerr.ErrCodeInvalidInput, "build merge policy program").WithCause(err)
	}
	p.program = prg
	return p, nil
}

// DefaultPolicy returns the built-in rule with the default threshold.
func DefaultPolicy() *Policy {
	return &Policy{threshold: DefaultMergeThreshold}
}

// Threshold returns the configured cardinality threshold.
func (p *Policy) Threshold() int64 {
	return p.threshold
}

// Decide picks a strategy for a type with the given estimated cardinality.
func (p *Policy) Decide(t *schema.EntityType, cardinality int64) (Strategy, error) {
	if p.program == nil {
		if cardinality < p.threshold && !t.EventLike && !t.AttributeLike {
			return MergeFirst, nil
		}
		return CreateThenMerge, nil
	}

	out, _, err := p.program.Eval(map[string]any{
		"cardinality":    cardinality,
		"threshold":      p.threshold,
		"type_name":      t.Name,
		"event_like":     t.EventLike,
		"attribute_like": t.AttributeLike,
	})
	if err != nil {
		return CreateThenMerge, ekgerr.New("compiler", "policy", ekgerr.ErrCodeInvalidInput, "evaluate merge policy").
			WithDetails(map[string]any{"type": t.Name, "expr": p.expr}).
			WithCause(err)
	}
	if merge, ok := out.Value().(bool); ok && merge {
		return MergeFirst, nil
	}
	return CreateThenMerge, nil
}
