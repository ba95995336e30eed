package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/compiler"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/journal"
	"github.com/zero-day-ai/ekg/schema"
)

const (
	// DefaultLockTTL bounds how long a crashed run holds the run lock.
	DefaultLockTTL = time.Hour

	instrumentationName = "github.com/zero-day-ai/ekg/pipeline"
)

// SessionFactory opens the store session used for one run.
type SessionFactory interface {
	NewSession(ctx context.Context) (batch.Session, error)
}

// Request selects what a run does.
type Request struct {
	// Phases to run, in the given order. Nil runs every construction phase.
	Phases []Phase
	// Types is the allow-list applied to every phase. Nil allows all types.
	Types []string
	// PhaseTypes overrides Types for individual phases.
	PhaseTypes map[Phase][]string
	// Prepare creates indexes before the first phase.
	Prepare bool
}

func (r Request) phases() []Phase {
	if r.Phases == nil {
		return Phases()
	}
	return r.Phases
}

func (r Request) types(p Phase) []string {
	if t, ok := r.PhaseTypes[p]; ok {
		return t
	}
	return r.Types
}

// Step is one template, or one inference hook, the pipeline runs.
type Step struct {
	Phase Phase
	Type  string
	// Name identifies the step: a constructor id, or the type and the name
	// of a supporting operation
	Name string
	// Strategy is the merge strategy of by-record node constructors
	Strategy string
	Template cypher.Template
	// Hook is set for inference steps, which have no template
	Hook string
}

// StepResult is the outcome of an executed step.
type StepResult struct {
	Step
	Attempts  int
	BatchSize int
	// Rows is the number of rows or operations the store reported
	Rows     int64
	Duration time.Duration
	// Skipped is set for inference steps without a registered hook
	Skipped bool
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Steps    []StepResult
}

// Pipeline runs construction phases for one schema.
type Pipeline struct {
	schema     *schema.Schema
	compiler   *compiler.Compiler
	policy     *compiler.Policy
	sessions   SessionFactory
	hooks      *HookRegistry
	journal    journal.Journal
	lockTTL    time.Duration
	engineOpts []batch.Option
	logger     *slog.Logger
	tracerProv trace.TracerProvider
	meterProv  metric.MeterProvider
	tracer     trace.Tracer
	metrics    *pipelineMetrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the pipeline and the engines it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCompiler replaces the default compiler.
func WithCompiler(c *compiler.Compiler) Option {
	return func(p *Pipeline) {
		p.compiler = c
	}
}

// WithPolicy sets the merge-vs-create policy.
func WithPolicy(policy *compiler.Policy) Option {
	return func(p *Pipeline) {
		if policy != nil {
			p.policy = policy
		}
	}
}

// WithHooks sets the inference hook registry.
func WithHooks(hooks *HookRegistry) Option {
	return func(p *Pipeline) {
		p.hooks = hooks
	}
}

// WithJournal records runs and holds the run lock in j.
func WithJournal(j journal.Journal) Option {
	return func(p *Pipeline) {
		if j != nil {
			p.journal = j
		}
	}
}

// WithLockTTL sets the run lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(p *Pipeline) {
		if ttl > 0 {
			p.lockTTL = ttl
		}
	}
}

// WithEngineOptions configures the batch engine of every run.
func WithEngineOptions(opts ...batch.Option) Option {
	return func(p *Pipeline) {
		p.engineOpts = append(p.engineOpts, opts...)
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) {
		p.tracerProv = tp
	}
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pipeline) {
		p.meterProv = mp
	}
}

// New creates a pipeline over s. Sessions are opened from sessions, one per
// run; it may be nil for a pipeline only used to Plan.
func New(s *schema.Schema, sessions SessionFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema:     s,
		sessions:   sessions,
		policy:     compiler.DefaultPolicy(),
		journal:    journal.NopJournal{},
		lockTTL:    DefaultLockTTL,
		logger:     slog.Default(),
		tracerProv: tracenoop.NewTracerProvider(),
		meterProv:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.compiler == nil {
		p.compiler = compiler.New(s, compiler.WithLogger(p.logger))
	}
	if p.hooks == nil {
		p.hooks = NewHookRegistry(p.logger)
	}
	p.tracer = p.tracerProv.Tracer(instrumentationName)
	m, err := newPipelineMetrics(p.meterProv.Meter(instrumentationName))
	if err != nil {
		p.logger.Warn("pipeline metrics disabled", "error", err)
		m, _ = newPipelineMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName))
	}
	p.metrics = m
	return p
}

// Schema returns the schema the pipeline builds.
func (p *Pipeline) Schema() *schema.Schema {
	return p.schema
}

// Hooks returns the inference hook registry.
func (p *Pipeline) Hooks() *HookRegistry {
	return p.hooks
}

// Run executes req on a fresh session. The session is closed and the run
// lock released on every exit path. On failure the returned report holds
// the steps completed before the failing one and the error is a
// *PipelineError.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	if p.sessions == nil {
		return nil, ekgerr.New("pipeline", "run", ekgerr.ErrCodeStoreUnavailable, "no session factory configured")
	}
	if err := p.checkTypes(req); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	report := &Report{RunID: runID, Started: time.Now()}
	logger := p.logger.With("run_id", runID)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("ekg.run_id", runID),
		attribute.String("ekg.schema", p.schema.Name()),
	))
	defer span.End()

	if !ordered(req.phases()) {
		logger.Warn("phases requested out of dependency order", "phases", req.phases())
	}

	if err := p.journal.Acquire(ctx, runID, p.lockTTL); err != nil {
		span.SetStatus(codes.Error, "run locked")
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	defer func() {
		if err := p.journal.Release(context.WithoutCancel(ctx), runID); err != nil {
			logger.Warn("failed to release run lock", "error", err)
		}
	}()

	session, err := p.sessions.NewSession(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "no session")
		return nil, fmt.Errorf("run %s: open session: %w", runID, err)
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to close session", "error", err)
		}
	}()

	opts := append([]batch.Option{
		batch.WithLogger(logger),
		batch.WithTracerProvider(p.tracerProv),
		batch.WithMeterProvider(p.meterProv),
	}, p.engineOpts...)
	r := &executor{
		p:      p,
		runID:  runID,
		engine: batch.NewEngine(session, opts...),
		report: report,
		logger: logger,
	}

	p.record(ctx, journal.Event{RunID: runID, Kind: journal.KindRunStarted})
	logger.Info("run started", "schema", p.schema.Name(), "phases", req.phases())

	err = p.run(ctx, r, req)
	report.Duration = time.Since(report.Started)
	if err != nil {
		p.record(ctx, journal.Event{RunID: runID, Kind: journal.KindRunFailed, Phase: phaseOf(err), Error: err.Error()})
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		logger.Error("run failed", "error", err, "duration", report.Duration)
		return report, err
	}

	p.record(ctx, journal.Event{RunID: runID, Kind: journal.KindRunFinished})
	span.SetAttributes(attribute.Int("ekg.steps", len(report.Steps)))
	span.SetStatus(codes.Ok, "")
	logger.Info("run finished", "steps", len(report.Steps), "duration", report.Duration)
	return report, nil
}

// Plan compiles the steps req would run without touching the store. Node
// constructors are planned with the strategy chosen for an empty store.
func (p *Pipeline) Plan(req Request) ([]Step, error) {
	if err := p.checkTypes(req); err != nil {
		return nil, err
	}
	r := &planner{p: p}
	if err := p.run(context.Background(), r, req); err != nil {
		return nil, err
	}
	return r.steps, nil
}

func (p *Pipeline) run(ctx context.Context, r runner, req Request) error {
	if req.Prepare {
		if err := p.phase(ctx, r, PhasePrepare, nil); err != nil {
			return err
		}
	}
	for _, ph := range req.phases() {
		if err := ctx.Err(); err != nil {
			return &PipelineError{
				RunID: r.id(),
				Phase: ph,
				Err: ekgerr.New("pipeline", "run", ekgerr.ErrCodeCanceled, "canceled before phase").
					WithCause(err),
			}
		}
		if err := p.phase(ctx, r, ph, req.types(ph)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) checkTypes(req Request) error {
	lists := [][]string{req.Types}
	for _, t := range req.PhaseTypes {
		lists = append(lists, t)
	}
	for _, list := range lists {
		for _, name := range list {
			if _, ok := p.schema.Type(name); !ok {
				return ekgerr.New("pipeline", "run", ekgerr.ErrCodeInvalidInput, "allow-list names an undeclared type").
					WithDetails(map[string]any{"type": name}).
					WithCause(fmt.Errorf("%w: %s", ErrUnknownType, name))
			}
		}
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, ev journal.Event) {
	if err := p.journal.Record(context.WithoutCancel(ctx), ev); err != nil {
		p.logger.Warn("failed to record journal event", "kind", ev.Kind, "error", err)
	}
}

func phaseOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Phase.String()
	}
	return ""
}
