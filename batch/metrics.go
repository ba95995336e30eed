package batch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics holds the metric instruments of the engine.
type engineMetrics struct {
	// attempts counts every attempt, including the first
	attempts metric.Int64Counter
	// failed counts attempts that errored or reported failed batches
	failed metric.Int64Counter
	// durationHistogram records total operation duration in milliseconds
	durationHistogram metric.Float64Histogram
}

func newEngineMetrics(meter metric.Meter) (*engineMetrics, error) {
	m := &engineMetrics{}
	var err error

	m.attempts, err = meter.Int64Counter(
		"ekg.batch.attempts",
		metric.WithDescription("Number of batch execution attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create attempts counter: %w", err)
	}

	m.failed, err = meter.Int64Counter(
		"ekg.batch.failed",
		metric.WithDescription("Number of failed batch execution attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}

	m.durationHistogram, err = meter.Float64Histogram(
		"ekg.batch.duration",
		metric.WithDescription("Batch operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return m, nil
}

func (m *engineMetrics) attempt(ctx context.Context, template string) {
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("template", template)))
}

func (m *engineMetrics) failure(ctx context.Context, template string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("template", template)))
}

func (m *engineMetrics) duration(ctx context.Context, template string, d time.Duration) {
	m.durationHistogram.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("template", template)))
}
