package ekg

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/config"
	"github.com/zero-day-ai/ekg/health"
)

func byName(checks []Check) map[string]health.HealthStatus {
	out := make(map[string]health.HealthStatus, len(checks))
	for _, c := range checks {
		out[c.Name] = c.Status
	}
	return out
}

func TestDiagnose_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := &config.Config{
		Schema: fixture,
		Neo4j:  config.Neo4jConfig{URI: "bolt://127.0.0.1:1"},
	}
	checks := Diagnose(ctx, cfg, WithLogger(quietLogger()))
	got := byName(checks)

	require.Contains(t, got, "schema")
	assert.True(t, got["schema"].IsHealthy(), got["schema"].Message)
	assert.True(t, got["neo4j endpoint"].IsUnhealthy())
	assert.True(t, got["neo4j"].IsUnhealthy())
	assert.NotContains(t, got, "apoc")
	assert.True(t, got["redis"].IsDegraded())
	assert.False(t, Healthy(checks))
}

func TestDiagnose_Redis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Neo4j: config.Neo4jConfig{URI: "bolt://127.0.0.1:1"},
		Redis: config.RedisConfig{URL: "redis://" + mr.Addr()},
	}
	got := byName(Diagnose(ctx, cfg, WithLogger(quietLogger())))

	assert.NotContains(t, got, "schema")
	assert.True(t, got["redis endpoint"].IsHealthy(), got["redis endpoint"].Message)
	assert.True(t, got["redis"].IsHealthy(), got["redis"].Message)
}

func TestHealthy(t *testing.T) {
	assert.True(t, Healthy(nil))
	assert.True(t, Healthy([]Check{
		{Name: "a", Status: health.NewHealthyStatus("ok")},
		{Name: "b", Status: health.NewDegradedStatus("partial", nil)},
	}))
	assert.False(t, Healthy([]Check{
		{Name: "a", Status: health.NewHealthyStatus("ok")},
		{Name: "b", Status: health.NewUnhealthyStatus("down", nil)},
	}))
}
