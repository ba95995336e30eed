package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/compiler"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/journal"
	"github.com/zero-day-ai/ekg/schema"
)

// executor runs steps against the store.
type executor struct {
	p      *Pipeline
	runID  string
	engine *batch.Engine
	report *Report
	logger *slog.Logger
}

func (e *executor) id() string { return e.runID }

func (e *executor) phaseEvent(ctx context.Context, ev journal.Event, err error, elapsed time.Duration) {
	ev.RunID = e.runID
	if ev.Kind == journal.KindPhaseFinished {
		e.p.metrics.phase(ctx, ev.Phase, elapsed, err)
		if err != nil {
			return
		}
		e.logger.Info("phase finished", "phase", ev.Phase, "duration", elapsed)
	} else {
		e.logger.Info("phase started", "phase", ev.Phase)
	}
	e.p.record(ctx, ev)
}

// decide estimates the constructor's cardinality from the records it has
// not consumed yet and applies the policy.
func (e *executor) decide(ctx context.Context, t *schema.EntityType, nc *schema.NodeByRecord) (compiler.Strategy, error) {
	tpl, err := e.p.compiler.CardinalityEstimate(nc)
	if err != nil {
		return compiler.CreateThenMerge, err
	}
	rows, err := e.engine.Query(ctx, tpl, nil)
	if err != nil {
		return compiler.CreateThenMerge, err
	}
	var cardinality int64
	if len(rows) > 0 {
		cardinality = toInt64(rows[0]["count"])
	}

	strategy, err := e.p.policy.Decide(t, cardinality)
	if err != nil {
		return strategy, err
	}
	e.logger.Debug("merge strategy decided",
		"type", t.Name,
		"constructor", nc.ID(),
		"cardinality", cardinality,
		"strategy", strategy.String(),
	)
	return strategy, nil
}

func (e *executor) step(ctx context.Context, s Step) error {
	res, err := e.engine.Execute(ctx, s.Template, nil)
	if err != nil {
		return err
	}

	rows := res.Report.Total
	if s.Template.Mode == cypher.ModeSingle {
		rows = int64(len(res.Rows))
	}
	e.finish(ctx, StepResult{
		Step:      s,
		Attempts:  res.Attempts,
		BatchSize: res.BatchSize,
		Rows:      rows,
		Duration:  res.Duration,
	})
	return nil
}

func (e *executor) inference(ctx context.Context, s Step, c *schema.ByInference) error {
	hook, ok := e.p.hooks.Get(c.Hook)
	if !ok {
		e.logger.Warn("inference hook not registered, skipping",
			"phase", s.Phase.String(),
			"type", s.Type,
			"constructor", s.Name,
			"hook", c.Hook,
		)
		e.finish(ctx, StepResult{Step: s, Skipped: true})
		return nil
	}

	if err := hook(ctx, e.engine, c); err != nil {
		return fmt.Errorf("inference hook %s: %w", c.Hook, err)
	}
	e.finish(ctx, StepResult{Step: s})
	return nil
}

func (e *executor) finish(ctx context.Context, res StepResult) {
	e.report.Steps = append(e.report.Steps, res)
	e.p.metrics.step(ctx, res)
	e.p.record(ctx, journal.Event{
		RunID:       e.runID,
		Kind:        journal.KindStepFinished,
		Phase:       res.Phase.String(),
		Type:        res.Type,
		Constructor: res.Name,
		Attempts:    res.Attempts,
		BatchSize:   res.BatchSize,
		Rows:        res.Rows,
	})
	e.logger.Info("step finished",
		"phase", res.Phase.String(),
		"type", res.Type,
		"constructor", res.Name,
		"rows", res.Rows,
		"attempts", res.Attempts,
		"skipped", res.Skipped,
	)
}

// planner collects steps without running them.
type planner struct {
	p     *Pipeline
	steps []Step
}

func (*planner) id() string { return "plan" }

func (*planner) phaseEvent(context.Context, journal.Event, error, time.Duration) {}

func (pl *planner) decide(_ context.Context, t *schema.EntityType, _ *schema.NodeByRecord) (compiler.Strategy, error) {
	return pl.p.policy.Decide(t, 0)
}

func (pl *planner) step(_ context.Context, s Step) error {
	pl.steps = append(pl.steps, s)
	return nil
}

func (pl *planner) inference(_ context.Context, s Step, _ *schema.ByInference) error {
	pl.steps = append(pl.steps, s)
	return nil
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
