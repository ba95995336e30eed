package ekg_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg"
	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/config"
	"github.com/zero-day-ai/ekg/inspect"
	"github.com/zero-day-ai/ekg/pipeline"
	"github.com/zero-day-ai/ekg/schema"
	"github.com/zero-day-ai/ekg/store"
)

const scenarioSchema = `
name: scenario
version: "1"
records:
  - "(record:EventRecord {timestamp, activity})"
  - "(record:OrderRecord {orderId})"
nodes:
  - type: Event
    constructor:
      - prevalent_record: "(record:EventRecord)"
        result: "(e:Event {timestamp: record.timestamp, activity: record.activity})"
  - type: Order
    infer_df: true
    constructor:
      - prevalent_record: "(record:OrderRecord)"
        result: "(o:Order {sysId: record.orderId})"
        infer_corr_from_event_record: true
`

// integration opens a client on the server named by EKG_NEO4J_URI. The
// target database is wiped, so the test also requires EKG_INTEGRATION=1.
func integration(t *testing.T, mutate func(*config.Config)) (*ekg.Client, batch.Session) {
	t.Helper()
	if os.Getenv("EKG_NEO4J_URI") == "" || os.Getenv("EKG_INTEGRATION") != "1" {
		t.Skip("set EKG_NEO4J_URI and EKG_INTEGRATION=1 to run against a disposable Neo4j database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Redis.URL = ""
	if mutate != nil {
		mutate(cfg)
	}

	s, err := schema.Parse([]byte(scenarioSchema))
	require.NoError(t, err)

	client, err := ekg.Open(ctx, cfg, ekg.WithSchema(s))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	st, err := store.Open(ctx, store.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.User,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	sess, err := st.NewSession(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close(context.Background()) })

	_, err = sess.Execute(ctx, "MATCH (n) DETACH DELETE n", nil)
	require.NoError(t, err)
	_, err = sess.Execute(ctx, `
UNWIND $records AS r
CREATE (rec:Record:EventRecord:OrderRecord)
SET rec = r`, map[string]any{"records": []any{
		map[string]any{"orderId": "A1", "timestamp": 10, "activity": "Create"},
		map[string]any{"orderId": "A1", "timestamp": 20, "activity": "Pay"},
	}})
	require.NoError(t, err)
	return client, sess
}

func countsByName(counts []inspect.Count) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for _, c := range counts {
		out[c.Name] = c.Count
	}
	return out
}

func directlyFollows(t *testing.T, sess batch.Session) [][2]int64 {
	t.Helper()
	rows, err := sess.Execute(context.Background(), `
MATCH (a:Event)-[:DF {entityType: 'Order'}]->(b:Event)
RETURN a.timestamp AS src, b.timestamp AS dst
ORDER BY src, dst`, nil)
	require.NoError(t, err)
	out := make([][2]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, [2]int64{r["src"].(int64), r["dst"].(int64)})
	}
	return out
}

func TestIntegration_DuplicateRecordsOneNode(t *testing.T) {
	client, _ := integration(t, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, pipeline.Request{Prepare: true})
	require.NoError(t, err)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	nodes := countsByName(stats.Nodes)
	assert.Equal(t, int64(1), nodes["Order"])
	assert.Equal(t, int64(2), nodes["Event"])
}

func TestIntegration_CreateThenMergeOneNode(t *testing.T) {
	client, _ := integration(t, func(c *config.Config) { c.Compiler.MergeThreshold = 1 })
	ctx := context.Background()

	report, err := client.Build(ctx, pipeline.Request{Phases: []pipeline.Phase{pipeline.PhaseNodesFromRecords}})
	require.NoError(t, err)

	var merged bool
	for _, st := range report.Steps {
		if st.Name == "Order/merge_same_identifier" {
			merged = true
		}
	}
	assert.True(t, merged, "expected a merge step for Order")

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), countsByName(stats.Nodes)["Order"])
}

func TestIntegration_DirectlyFollows(t *testing.T) {
	client, sess := integration(t, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, pipeline.Request{})
	require.NoError(t, err)

	assert.Equal(t, [][2]int64{{10, 20}}, directlyFollows(t, sess))
}

func TestIntegration_Idempotent(t *testing.T) {
	client, sess := integration(t, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, pipeline.Request{})
	require.NoError(t, err)
	first, err := client.Stats(ctx)
	require.NoError(t, err)
	firstDF := directlyFollows(t, sess)

	_, err = client.Build(ctx, pipeline.Request{})
	require.NoError(t, err)
	second, err := client.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstDF, directlyFollows(t, sess))
}

func TestIntegration_ExportEventLog(t *testing.T) {
	client, _ := integration(t, nil)
	ctx := context.Background()

	_, err := client.Build(ctx, pipeline.Request{})
	require.NoError(t, err)

	order, ok := client.Schema().Type("Order")
	require.True(t, ok)
	rows, err := client.ExportEventLog(ctx, inspect.EventLogQuery{Type: order})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Create", rows[0].Event["activity"])
	assert.Equal(t, "Pay", rows[1].Event["activity"])
	assert.Equal(t, rows[0].Case, rows[1].Case)
}
