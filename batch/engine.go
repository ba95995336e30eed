package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/ekgerr"
)

const (
	// DefaultBatchSize is the initial batch size.
	DefaultBatchSize = 10000
	// DefaultMinBatchSize is the floor the batch size is never halved below.
	DefaultMinBatchSize = 10000
	// DefaultMaxAttempts is the attempt ceiling per operation.
	DefaultMaxAttempts = 10

	instrumentationName = "github.com/zero-day-ai/ekg/batch"
)

// Result describes a successful execution.
type Result struct {
	Template string
	// Attempts is the number of attempts made, including the successful one
	Attempts int
	// BatchSize is the batch size of the successful attempt
	BatchSize int
	// Report is the store's report of the successful attempt
	Report Report
	// Rows are the rows returned by a single-mode template
	Rows     []Row
	Duration time.Duration
}

// Engine runs templates with retry on partial failure.
type Engine struct {
	exec        Executor
	batchSize   int
	minBatch    int
	maxAttempts int
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *engineMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets the default initial batch size.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMinBatchSize sets the floor for batch size reduction.
func WithMinBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minBatch = n
		}
	}
}

// WithMaxAttempts sets the attempt ceiling.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracerProvider sets the tracer provider for batch spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider for batch metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		m, err := newEngineMetrics(mp.Meter(instrumentationName))
		if err != nil {
			e.logger.Warn("failed to initialize batch metrics", "error", err)
			return
		}
		e.metrics = m
	}
}

// NewEngine creates an engine executing on exec.
func NewEngine(exec Executor, opts ...Option) *Engine {
	e := &Engine{
		exec:        exec,
		batchSize:   DefaultBatchSize,
		minBatch:    DefaultMinBatchSize,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
		tracer:      tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	e.metrics, _ = newEngineMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName))
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BatchSize returns the default initial batch size.
func (e *Engine) BatchSize() int {
	return e.batchSize
}

// Execute runs tpl with the default batch size.
func (e *Engine) Execute(ctx context.Context, tpl cypher.Template, params map[string]any) (Result, error) {
	return e.ExecuteWithBatchSize(ctx, tpl, params, e.batchSize)
}

// ExecuteWithBatchSize runs tpl starting from the given batch size. params
// are bound on top of the template's own parameters.
//
// Single-mode templates are retried on error up to the attempt ceiling.
// Batched templates are also retried while the store reports failed
// batches, halving the batch size each time.
func (e *Engine) ExecuteWithBatchSize(ctx context.Context, tpl cypher.Template, params map[string]any, size int) (Result, error) {
	if size <= 0 {
		size = e.batchSize
	}
	ctx, span := e.tracer.Start(ctx, "batch.execute", trace.WithAttributes(
		attribute.String("ekg.template", tpl.Name),
		attribute.String("ekg.mode", tpl.Mode.String()),
	))
	defer span.End()

	bound := tpl.WithParams(params).Params

	start := time.Now()
	var (
		messages []string
		lastErr  error
	)
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return Result{}, ekgerr.New("batch", "execute", ekgerr.ErrCodeCanceled, "canceled before attempt").
				WithDetails(map[string]any{"template": tpl.Name, "attempt": attempt}).
				WithCause(err)
		}

		e.metrics.attempt(ctx, tpl.Name)
		res, err := e.attempt(ctx, tpl, bound, size)
		res.Attempts = attempt
		res.Duration = time.Since(start)

		if err == nil && !res.Report.Failed() {
			e.metrics.duration(ctx, tpl.Name, res.Duration)
			span.SetAttributes(
				attribute.Int("ekg.attempts", attempt),
				attribute.Int("ekg.batch_size", size),
				attribute.Int64("ekg.total", res.Report.Total),
			)
			span.SetStatus(codes.Ok, "")
			return res, nil
		}

		e.metrics.failure(ctx, tpl.Name)
		lastErr = err
		if err != nil {
			messages = []string{err.Error()}
		} else {
			messages = res.Report.ErrorMessages
		}

		if attempt == e.maxAttempts {
			fatal := &ekgerr.FatalBatchError{
				Template:  tpl.Name,
				Attempts:  attempt,
				BatchSize: size,
				Messages:  messages,
				Cause:     lastErr,
			}
			e.metrics.duration(ctx, tpl.Name, time.Since(start))
			span.RecordError(fatal)
			span.SetStatus(codes.Error, "maximum attempts reached")
			e.logger.Error("batch operation failed",
				"template", tpl.Name,
				"attempts", attempt,
				"batch_size", size,
				"messages", messages,
			)
			return Result{}, fatal
		}

		next := e.nextBatchSize(size)
		e.logger.Warn("batch operation failed, retrying",
			"template", tpl.Name,
			"attempt", attempt,
			"batch_size", size,
			"next_batch_size", next,
			"failed_batches", res.Report.FailedBatches,
			"error", err,
		)
		size = next
	}
	// unreachable: maxAttempts is at least one
	return Result{}, fmt.Errorf("batch %s: no attempt made", tpl.Name)
}

func (e *Engine) attempt(ctx context.Context, tpl cypher.Template, params map[string]any, size int) (Result, error) {
	res := Result{Template: tpl.Name, BatchSize: size}
	if tpl.Mode == cypher.ModeSingle {
		rows, err := e.exec.Execute(ctx, tpl.Query, params)
		res.Rows = rows
		return res, err
	}
	report, err := e.exec.RunBatched(ctx, Request{
		Mode:      tpl.Mode,
		Query:     tpl.Query,
		Source:    tpl.Source,
		Params:    params,
		BatchSize: size,
	})
	res.Report = report
	return res, err
}

// nextBatchSize halves size without going below the floor. Sizes already at
// or below the floor are kept.
func (e *Engine) nextBatchSize(size int) int {
	next := size / 2
	if next < e.minBatch {
		next = e.minBatch
	}
	if next > size {
		next = size
	}
	return next
}

// Query runs a single-mode read query and returns its rows.
func (e *Engine) Query(ctx context.Context, tpl cypher.Template, params map[string]any) ([]Row, error) {
	res, err := e.Execute(ctx, tpl, params)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}
