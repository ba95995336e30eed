package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// pipelineMetrics holds the metric instruments of the pipeline.
type pipelineMetrics struct {
	// phaseDuration records phase duration in milliseconds
	phaseDuration metric.Float64Histogram
	// steps counts finished steps
	steps metric.Int64Counter
	// rows counts rows reported by finished steps
	rows metric.Int64Counter
}

func newPipelineMetrics(meter metric.Meter) (*pipelineMetrics, error) {
	m := &pipelineMetrics{}
	var err error

	m.phaseDuration, err = meter.Float64Histogram(
		"ekg.phase.duration",
		metric.WithDescription("Construction phase duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create phase duration histogram: %w", err)
	}

	m.steps, err = meter.Int64Counter(
		"ekg.pipeline.steps",
		metric.WithDescription("Number of finished pipeline steps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create steps counter: %w", err)
	}

	m.rows, err = meter.Int64Counter(
		"ekg.pipeline.rows",
		metric.WithDescription("Number of rows processed by pipeline steps"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rows counter: %w", err)
	}
	return m, nil
}

func (m *pipelineMetrics) phase(ctx context.Context, phase string, d time.Duration, err error) {
	m.phaseDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.Bool("success", err == nil),
	))
}

func (m *pipelineMetrics) step(ctx context.Context, res StepResult) {
	attrs := metric.WithAttributes(
		attribute.String("phase", res.Phase.String()),
		attribute.String("type", res.Type),
	)
	m.steps.Add(ctx, 1, attrs)
	m.rows.Add(ctx, res.Rows, attrs)
}
