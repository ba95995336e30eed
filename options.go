package ekg

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/ekg/pipeline"
	"github.com/zero-day-ai/ekg/schema"
)

// Option configures a Client.
type Option func(*options)

// options holds settings that do not come from the configuration file.
type options struct {
	logger     *slog.Logger
	schema     *schema.Schema
	hooks      *pipeline.HookRegistry
	tracerProv trace.TracerProvider
	meterProv  metric.MeterProvider

	pipelineOpts []pipeline.Option
}

// WithLogger sets a custom logger.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSchema uses an already loaded schema instead of reading the schema
// path from the configuration.
func WithSchema(s *schema.Schema) Option {
	return func(o *options) {
		o.schema = s
	}
}

// WithHooks sets the registry inference constructors are resolved against.
func WithHooks(hooks *pipeline.HookRegistry) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithTracerProvider sets an OpenTelemetry tracer provider for runs and
// batch executions.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProv = tp
	}
}

// WithMeterProvider sets an OpenTelemetry meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProv = mp
	}
}

func withPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *options) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
