package ekg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/compiler"
	"github.com/zero-day-ai/ekg/config"
	"github.com/zero-day-ai/ekg/inspect"
	"github.com/zero-day-ai/ekg/journal"
	"github.com/zero-day-ai/ekg/pipeline"
	"github.com/zero-day-ai/ekg/schema"
	"github.com/zero-day-ai/ekg/store"
)

// Client is a schema bound to a Neo4j store and, when configured, a Redis
// run journal.
type Client struct {
	cfg      *config.Config
	logger   *slog.Logger
	schema   *schema.Schema
	store    *store.Neo4jStore
	journal  *journal.RedisJournal
	pipeline *pipeline.Pipeline
}

// Stats summarizes the graph.
type Stats struct {
	Nodes []inspect.Count
	Edges []inspect.Count
}

// Open validates cfg, loads the schema, connects to the store and, when a
// Redis URL is configured, to the run journal.
//
// Example:
//
//	client, err := ekg.Open(ctx, cfg, ekg.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	s, err := loadSchema(cfg, o)
	if err != nil {
		return nil, err
	}
	// Compile the policy before dialing so a bad expression fails fast.
	if _, err := newPolicy(cfg); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	}, store.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, logger: o.logger, schema: s, store: st}
	if cfg.Redis.Enabled() {
		j, err := journal.NewRedisJournal(journal.RedisOptions{
			URL:    cfg.Redis.URL,
			Prefix: cfg.Redis.GetPrefix(),
		})
		if err != nil {
			_ = c.closeStore(ctx)
			return nil, err
		}
		c.journal = j
	}

	var popts []pipeline.Option
	if c.journal != nil {
		popts = append(popts, pipeline.WithJournal(c.journal))
	}
	c.pipeline, err = NewPipeline(cfg, s, st, append(opts[:len(opts):len(opts)], withPipelineOptions(popts...))...)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	o.logger.Info("ekg client opened",
		"schema", s.Name(),
		"uri", cfg.Neo4j.URI,
		"journal", c.journal != nil)
	return c, nil
}

// NewPipeline builds a pipeline over s configured from cfg. sessions may be
// nil for a pipeline only used to Plan.
func NewPipeline(cfg *config.Config, s *schema.Schema, sessions pipeline.SessionFactory, opts ...Option) (*pipeline.Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	o := newOptions(opts)

	policy, err := newPolicy(cfg)
	if err != nil {
		return nil, err
	}
	comp := compiler.New(s,
		compiler.WithLogger(o.logger),
		compiler.WithTimestampAttribute(cfg.Compiler.GetTimestampAttribute()),
		compiler.WithTieBreak(cfg.Compiler.TieBreak),
		compiler.WithDuration(cfg.Compiler.Duration),
	)

	popts := []pipeline.Option{
		pipeline.WithLogger(o.logger),
		pipeline.WithCompiler(comp),
		pipeline.WithPolicy(policy),
		pipeline.WithLockTTL(cfg.Redis.GetLockTTL()),
		pipeline.WithEngineOptions(
			batch.WithBatchSize(cfg.Batch.GetSize()),
			batch.WithMinBatchSize(cfg.Batch.GetMinSize()),
			batch.WithMaxAttempts(cfg.Batch.GetMaxAttempts()),
		),
	}
	if o.hooks != nil {
		popts = append(popts, pipeline.WithHooks(o.hooks))
	}
	if o.tracerProv != nil {
		popts = append(popts, pipeline.WithTracerProvider(o.tracerProv))
	}
	if o.meterProv != nil {
		popts = append(popts, pipeline.WithMeterProvider(o.meterProv))
	}
	popts = append(popts, o.pipelineOpts...)
	return pipeline.New(s, sessions, popts...), nil
}

// LoadSchema returns the schema named by cfg.Schema.
func LoadSchema(cfg *config.Config) (*schema.Schema, error) {
	return loadSchema(cfg, &options{})
}

func loadSchema(cfg *config.Config, o *options) (*schema.Schema, error) {
	if o.schema != nil {
		return o.schema, nil
	}
	if cfg.Schema == "" {
		return nil, fmt.Errorf("%w: schema path is required", ErrInvalidConfig)
	}
	return schema.Load(cfg.Schema)
}

func newPolicy(cfg *config.Config) (*compiler.Policy, error) {
	return compiler.NewPolicy(cfg.Compiler.GetMergeThreshold(), cfg.Compiler.MergePolicy)
}

// Schema returns the schema the client builds.
func (c *Client) Schema() *schema.Schema {
	return c.schema
}

// Pipeline returns the construction pipeline.
func (c *Client) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Build runs the construction pipeline.
func (c *Client) Build(ctx context.Context, req pipeline.Request) (*pipeline.Report, error) {
	if c.store == nil {
		return nil, ErrNotConnected
	}
	return c.pipeline.Run(ctx, req)
}

// Plan lists the steps Build would run, without touching the store.
func (c *Client) Plan(req pipeline.Request) ([]pipeline.Step, error) {
	return c.pipeline.Plan(req)
}

// Stats counts nodes per label and relationships per type.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := c.withSession(ctx, func(i *inspect.Inspector) error {
		var err error
		if st.Nodes, err = i.NodeCounts(ctx); err != nil {
			return err
		}
		st.Edges, err = i.EdgeCounts(ctx)
		return err
	})
	return st, err
}

// ExportEventLog returns the event log of one entity type.
func (c *Client) ExportEventLog(ctx context.Context, q inspect.EventLogQuery) ([]inspect.EventRow, error) {
	var rows []inspect.EventRow
	err := c.withSession(ctx, func(i *inspect.Inspector) error {
		var err error
		rows, err = i.ExportEventLog(ctx, q)
		return err
	})
	return rows, err
}

// Events returns the journaled events of a run, oldest first.
func (c *Client) Events(ctx context.Context, runID string) ([]journal.Event, error) {
	if c.journal == nil {
		return nil, fmt.Errorf("run journal: %w", ErrNotConnected)
	}
	return c.journal.Events(ctx, runID)
}

// Close releases the journal and store connections. It is safe to call
// more than once.
func (c *Client) Close(ctx context.Context) error {
	if c.journal != nil {
		CloseWithLog(c.journal, c.logger, "run journal")
		c.journal = nil
	}
	return c.closeStore(ctx)
}

func (c *Client) closeStore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close(ctx)
	c.store = nil
	return err
}

func (c *Client) withSession(ctx context.Context, fn func(*inspect.Inspector) error) error {
	if c.store == nil {
		return ErrNotConnected
	}
	sess, err := c.store.NewSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			c.logger.Warn("failed to close session", "error", err)
		}
	}()
	return fn(c.inspector(sess))
}

// inspector runs read queries on exec, ordering event logs the way
// directly-follows edges are ordered.
func (c *Client) inspector(exec batch.Executor) *inspect.Inspector {
	return inspect.New(exec,
		inspect.WithTimestampAttribute(c.cfg.Compiler.GetTimestampAttribute()),
		inspect.WithTieBreak(c.cfg.Compiler.TieBreak),
	)
}
