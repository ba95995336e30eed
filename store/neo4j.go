package store

import (
	"context"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/ekgerr"
)

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	// Database is the target database; empty selects the server default
	Database string
}

// Neo4jStore is a connection to a Neo4j server.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// Option configures a Neo4jStore.
type Option func(*Neo4jStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Neo4jStore) {
		s.logger = logger
	}
}

// Open creates the driver and verifies connectivity.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Neo4jStore, error) {
	if cfg.URI == "" {
		return nil, ekgerr.New("store", "open", ekgerr.ErrCodeInvalidInput, "neo4j uri is required")
	}
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, ekgerr.New("store", "open", ekgerr.ErrCodeStoreUnavailable, "create driver").
			WithDetails(map[string]any{"uri": cfg.URI}).
			WithCause(err)
	}

	s := &Neo4jStore{driver: driver, database: cfg.Database, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	s.logger.Debug("connected to neo4j", "uri", cfg.URI, "database", cfg.Database)
	return s, nil
}

// VerifyConnectivity checks that the server is reachable.
func (s *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return ekgerr.New("store", "verify", ekgerr.ErrCodeStoreUnavailable, "neo4j unreachable").WithCause(err)
	}
	return nil
}

// Database returns the configured database name.
func (s *Neo4jStore) Database() string {
	return s.database
}

// NewSession opens a write session on the configured database. The caller
// must close it.
func (s *Neo4jStore) NewSession(ctx context.Context) (batch.Session, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	return &Session{session: session, logger: s.logger}, nil
}

// Close closes the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Session runs queries on one Neo4j session.
type Session struct {
	session neo4j.SessionWithContext
	logger  *slog.Logger
}

// Execute runs query and collects all rows.
func (s *Session) Execute(ctx context.Context, query string, params map[string]any) ([]batch.Row, error) {
	result, err := s.session.Run(ctx, query, params)
	if err != nil {
		return nil, queryError("execute", err)
	}

	var rows []batch.Row
	for result.Next(ctx) {
		rows = append(rows, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, queryError("execute", err)
	}
	return rows, nil
}

// RunBatched wraps req in the matching APOC procedure and parses its report.
func (s *Session) RunBatched(ctx context.Context, req batch.Request) (batch.Report, error) {
	query, params, err := wrap(req)
	if err != nil {
		return batch.Report{}, err
	}
	rows, err := s.Execute(ctx, query, params)
	if err != nil {
		return batch.Report{}, err
	}
	if len(rows) == 0 {
		return batch.Report{}, ekgerr.New("store", "run_batched", ekgerr.ErrCodeQueryFailed, "procedure returned no report")
	}
	report := parseReport(req.Mode, rows[0])
	s.logger.Debug("batched operation finished",
		"mode", req.Mode.String(),
		"batch_size", req.BatchSize,
		"batches", report.Batches,
		"failed_batches", report.FailedBatches,
		"total", report.Total,
	)
	return report, nil
}

// Close closes the session.
func (s *Session) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

func queryError(op string, err error) error {
	e := ekgerr.New("store", op, ekgerr.ErrCodeQueryFailed, "query failed").WithCause(err)
	if neo4j.IsRetryable(err) {
		e.WithClass(ekgerr.ErrorClassTransient)
	}
	return e
}
