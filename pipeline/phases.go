package pipeline

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/ekg/compiler"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/journal"
	"github.com/zero-day-ai/ekg/schema"
)

// runner carries out the steps the phases produce. The executor runs them
// against the store; the planner only collects them.
type runner interface {
	id() string
	// phaseEvent journals phase boundaries. A finished event also records
	// the phase duration; it is not journaled when err is set.
	phaseEvent(ctx context.Context, ev journal.Event, err error, elapsed time.Duration)
	// decide picks the strategy of a by-record node constructor just
	// before it runs
	decide(ctx context.Context, t *schema.EntityType, nc *schema.NodeByRecord) (compiler.Strategy, error)
	step(ctx context.Context, s Step) error
	inference(ctx context.Context, s Step, c *schema.ByInference) error
}

// phase runs one phase. Errors are returned as *PipelineError.
func (p *Pipeline) phase(ctx context.Context, r runner, ph Phase, types []string) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.phase", trace.WithAttributes(
		attribute.String("ekg.phase", ph.String()),
	))
	defer span.End()

	start := time.Now()
	r.phaseEvent(ctx, journal.Event{Kind: journal.KindPhaseStarted, Phase: ph.String()}, nil, 0)

	err := p.phaseSteps(ctx, r, ph, types)
	elapsed := time.Since(start)
	r.phaseEvent(ctx, journal.Event{Kind: journal.KindPhaseFinished, Phase: ph.String()}, err, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "phase failed")
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Pipeline) phaseSteps(ctx context.Context, r runner, ph Phase, types []string) error {
	fail := func(typ, name string, err error) error {
		return &PipelineError{RunID: r.id(), Phase: ph, Type: typ, Constructor: name, Err: err}
	}
	// run compiles and runs one step
	run := func(typ, name, strategy string, tpl cypher.Template, err error) error {
		if err != nil {
			return fail(typ, name, err)
		}
		s := Step{Phase: ph, Type: typ, Name: name, Strategy: strategy, Template: tpl}
		if err := r.step(ctx, s); err != nil {
			return fail(typ, name, err)
		}
		return nil
	}
	reset := func(typ, after string) error {
		name := "reset_markers"
		if after != "" {
			name = after + "/" + name
		}
		tpl, err := p.compiler.ResetMarkers()
		return run(typ, name, "", tpl, err)
	}

	switch ph {
	case PhasePrepare:
		tpls, err := p.compiler.PrepareDatabase()
		if err != nil {
			return fail("", "prepare", err)
		}
		for _, tpl := range tpls {
			if err := run("", tpl.Name, "", tpl, nil); err != nil {
				return err
			}
		}

	case PhaseNodesFromRecords:
		constructors := p.schema.NodeByRecordConstructors(types)
		if len(constructors) > 0 {
			// markers left behind by an interrupted run
			if err := reset("", ""); err != nil {
				return err
			}
		}
		for _, nc := range constructors {
			t, _ := p.schema.Type(nc.Owner())
			strategy, err := r.decide(ctx, t, nc)
			if err != nil {
				return fail(t.Name, nc.ID(), err)
			}
			tpl, err := p.compiler.NodeByRecord(nc, strategy)
			if err := run(t.Name, nc.ID(), strategy.String(), tpl, err); err != nil {
				return err
			}
			if err := reset(t.Name, nc.ID()); err != nil {
				return err
			}
			if dedupe(t, strategy) {
				tpl, err := p.compiler.MergeSameIdentifier(t)
				if err := run(t.Name, tpl.Name, "", tpl, err); err != nil {
					return err
				}
			}
		}
		return p.inferences(ctx, r, ph, schema.KindNode, types)

	case PhaseRelationsFromRecords:
		constructors := p.schema.RelationByRecordConstructors(types)
		if len(constructors) > 0 {
			if err := reset("", ""); err != nil {
				return err
			}
		}
		for _, rc := range constructors {
			tpl, err := p.compiler.RelationByRecord(rc)
			if err := run(rc.Owner(), rc.ID(), "", tpl, err); err != nil {
				return err
			}
			if err := reset(rc.Owner(), rc.ID()); err != nil {
				return err
			}
		}

	case PhaseRelationsFromSubgraphs:
		for _, rc := range p.schema.RelationBySubgraphConstructors(types) {
			tpl, err := p.compiler.RelationBySubgraph(rc)
			if err := run(rc.Owner(), rc.ID(), "", tpl, err); err != nil {
				return err
			}
		}
		return p.inferences(ctx, r, ph, schema.KindRelation, types)

	case PhaseNodesFromSubgraphs:
		for _, nc := range p.schema.NodeBySubgraphConstructors(types) {
			tpl, err := p.compiler.NodeBySubgraph(nc)
			if err := run(nc.Owner(), nc.ID(), "", tpl, err); err != nil {
				return err
			}
		}
		for _, t := range p.reifiedTypes(types) {
			tpls, err := p.compiler.CorrelateReifiedParents(t)
			if err != nil {
				return fail(t.Name, t.Name+"/correlate_reified_parents", err)
			}
			for _, tpl := range tpls {
				if err := run(t.Name, tpl.Name, "", tpl, nil); err != nil {
					return err
				}
			}
		}

	case PhaseDirectlyFollows:
		for _, t := range p.schema.DFTypes(types) {
			tpl, err := p.compiler.DirectlyFollows(t)
			if err := run(t.Name, t.Name+"/df", "", tpl, err); err != nil {
				return err
			}
		}

	case PhaseMergeDuplicateDF:
		for _, t := range p.schema.DFTypes(types) {
			if !t.MergeDuplicateDF {
				continue
			}
			tpl, err := p.compiler.MergeDuplicateDF(t)
			if err := run(t.Name, t.Name+"/merge_duplicate_df", "", tpl, err); err != nil {
				return err
			}
		}

	case PhaseDeleteParallelDF:
		for _, t := range p.schema.DFTypes(types) {
			if !t.DeleteParallelDF {
				continue
			}
			tpl, err := p.compiler.DeleteParallelDF(t)
			if err := run(t.Name, t.Name+"/delete_parallel_df", "", tpl, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// inferences runs the hook-based constructors of the given kind.
func (p *Pipeline) inferences(ctx context.Context, r runner, ph Phase, kind schema.Kind, types []string) error {
	for _, c := range p.schema.InferenceConstructors(kind, types) {
		s := Step{Phase: ph, Type: c.Owner(), Name: c.ID(), Hook: c.Hook}
		if err := r.inference(ctx, s, c); err != nil {
			return &PipelineError{RunID: r.id(), Phase: ph, Type: c.Owner(), Constructor: c.ID(), Err: err}
		}
	}
	return nil
}

// reifiedTypes returns the selected node and relation types with
// correlation from reified parents enabled on a constructor.
func (p *Pipeline) reifiedTypes(types []string) []*schema.EntityType {
	var out []*schema.EntityType
	all := append(p.schema.NodeTypes(), p.schema.RelationTypes()...)
	for _, t := range all {
		if types != nil && !slices.Contains(types, t.Name) {
			continue
		}
		for _, c := range t.Constructors {
			if reifiedParents(c) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func reifiedParents(c schema.Constructor) bool {
	switch c := c.(type) {
	case *schema.NodeBySubgraph:
		return c.InferCorrFromReifiedParents
	case *schema.RelationByRecord:
		return c.InferCorrFromReifiedParents && c.ModelAsNode
	case *schema.RelationBySubgraph:
		return c.InferCorrFromReifiedParents && c.ModelAsNode
	}
	return false
}

// dedupe reports whether nodes of t are merged on their identifier after a
// constructor ran with strategy.
func dedupe(t *schema.EntityType, strategy compiler.Strategy) bool {
	return strategy == compiler.CreateThenMerge && !t.EventLike && !t.AttributeLike && !t.SurrogateID()
}
