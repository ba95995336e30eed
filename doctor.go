package ekg

import (
	"context"

	"github.com/zero-day-ai/ekg/config"
	"github.com/zero-day-ai/ekg/health"
	"github.com/zero-day-ai/ekg/journal"
	"github.com/zero-day-ai/ekg/store"
)

// Check is the outcome of one named health check.
type Check struct {
	Name   string
	Status health.HealthStatus
}

// Diagnose checks every dependency cfg names. Unlike Open it never fails:
// an unreachable store is reported and the checks that need it are
// reported unhealthy.
func Diagnose(ctx context.Context, cfg *config.Config, opts ...Option) []Check {
	o := newOptions(opts)
	var checks []Check
	add := func(name string, status health.HealthStatus) {
		o.logger.Debug("health check", "check", name, "status", status.Status, "message", status.Message)
		checks = append(checks, Check{Name: name, Status: status})
	}

	if cfg.Schema != "" {
		add("schema", health.SchemaCheck(cfg.Schema))
	}

	add("neo4j endpoint", health.EndpointCheck(ctx, cfg.Neo4j.URI))
	st, err := store.Open(ctx, store.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	}, store.WithLogger(o.logger))
	if err != nil {
		unreachable := health.NewUnhealthyStatus("store is unreachable", map[string]any{"error": err.Error()})
		add("neo4j", unreachable)
	} else {
		defer func() {
			if err := st.Close(ctx); err != nil {
				o.logger.Warn("failed to close store", "error", err)
			}
		}()
		add("neo4j", health.StoreCheck(ctx, st))
		diagnoseServer(ctx, st, add)
	}

	if !cfg.Redis.Enabled() {
		add("redis", health.RedisCheck(ctx, nil))
		return checks
	}
	add("redis endpoint", health.EndpointCheck(ctx, cfg.Redis.URL))
	j, err := journal.NewRedisJournal(journal.RedisOptions{URL: cfg.Redis.URL, Prefix: cfg.Redis.GetPrefix()})
	if err != nil {
		add("redis", health.NewUnhealthyStatus("redis is unreachable", map[string]any{"error": err.Error()}))
		return checks
	}
	defer CloseWithLog(j, o.logger, "run journal")
	add("redis", health.RedisCheck(ctx, j))
	return checks
}

func diagnoseServer(ctx context.Context, st *store.Neo4jStore, add func(string, health.HealthStatus)) {
	sess, err := st.NewSession(ctx)
	if err != nil {
		add("server version", health.NewUnhealthyStatus("failed to open session", map[string]any{"error": err.Error()}))
		return
	}
	defer func() { _ = sess.Close(ctx) }()

	add("server version", health.ServerVersionCheck(ctx, sess, health.MinServerVersion))
	add("apoc", health.APOCCheck(ctx, sess))
}

// Healthy reports whether no check is unhealthy.
func Healthy(checks []Check) bool {
	statuses := make([]health.HealthStatus, 0, len(checks))
	for _, c := range checks {
		statuses = append(statuses, c.Status)
	}
	return !health.Combine(statuses...).IsUnhealthy()
}
