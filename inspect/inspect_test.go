package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/schema"
)

type fakeExecutor struct {
	rows   []batch.Row
	err    error
	query  string
	params map[string]any
}

func (f *fakeExecutor) Execute(_ context.Context, query string, params map[string]any) ([]batch.Row, error) {
	f.query = query
	f.params = params
	return f.rows, f.err
}

func (f *fakeExecutor) RunBatched(context.Context, batch.Request) (batch.Report, error) {
	return batch.Report{}, errors.New("read-only")
}

func orderType(t *testing.T) *schema.EntityType {
	t.Helper()
	s, err := schema.Load("../schema/testdata/orders.yaml")
	require.NoError(t, err)
	order, ok := s.Type("Order")
	require.True(t, ok)
	return order
}

func TestNodeCounts(t *testing.T) {
	exec := &fakeExecutor{rows: []batch.Row{
		{"name": "Event", "count": int64(120)},
		{"name": "Order", "count": int64(7)},
	}}

	counts, err := New(exec).NodeCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Count{{Name: "Event", Count: 120}, {Name: "Order", Count: 7}}, counts)
	assert.Contains(t, exec.query, "UNWIND labels(n) AS name")
}

func TestEdgeCounts(t *testing.T) {
	exec := &fakeExecutor{rows: []batch.Row{{"name": "CORR", "count": int64(3)}}}

	counts, err := New(exec).EdgeCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Count{{Name: "CORR", Count: 3}}, counts)
	assert.Contains(t, exec.query, "type(r) AS name")
}

func TestLabelsAndTypes(t *testing.T) {
	exec := &fakeExecutor{rows: []batch.Row{{"name": "Event"}, {"name": "Order"}, {"other": 1}}}
	i := New(exec)

	labels, err := i.Labels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Event", "Order"}, labels)
	assert.Contains(t, exec.query, "db.labels()")

	_, err = i.RelationshipTypes(context.Background())
	require.NoError(t, err)
	assert.Contains(t, exec.query, "db.relationshipTypes()")
}

func TestQueryError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection reset")}

	_, err := New(exec).NodeCounts(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, &ekgerr.Error{Code: ekgerr.ErrCodeQueryFailed}))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestEventLogTemplate(t *testing.T) {
	order := orderType(t)

	tpl, err := New(nil).EventLogTemplate(EventLogQuery{Type: order})
	require.NoError(t, err)
	assert.Equal(t, "event_log/Order", tpl.Name)
	assert.Contains(t, tpl.Query, "MATCH (n:Order)<-[:CORR]-(e:Event)")
	assert.Contains(t, tpl.Query, "WITH DISTINCT n, e")
	assert.Contains(t, tpl.Query, "ORDER BY caseId, e.timestamp, elementId(e)")
	assert.NotContains(t, tpl.Query, "WHERE")
	assert.NotContains(t, tpl.Query, "LIMIT")
	assert.Empty(t, tpl.Params)
}

func TestEventLogTemplate_Filters(t *testing.T) {
	order := orderType(t)

	tpl, err := New(nil, WithTimestampAttribute("ts")).EventLogTemplate(EventLogQuery{
		Type:   order,
		Entity: []cypher.Predicate{{Field: "sysId", Op: cypher.In, Value: []string{"A1", "A2"}}},
		Event: []cypher.Predicate{
			{Field: "activity", Op: cypher.Eq, Value: "Pay"},
			{Field: "resource", Op: cypher.IsNotNull},
		},
		Limit: 50,
	})
	require.NoError(t, err)
	assert.Contains(t, tpl.Query, "WHERE n.sysId IN $n0 AND e.activity = $e0 AND e.resource IS NOT NULL")
	assert.Contains(t, tpl.Query, "ORDER BY caseId, e.ts, elementId(e)")
	assert.Contains(t, tpl.Query, "LIMIT $rowLimit")
	assert.Equal(t, map[string]any{
		"n0":       []string{"A1", "A2"},
		"e0":       "Pay",
		"rowLimit": 50,
	}, tpl.Params)
}

func TestEventLogTemplate_TieBreak(t *testing.T) {
	order := orderType(t)

	tpl, err := New(nil, WithTieBreak("seq")).EventLogTemplate(EventLogQuery{Type: order})
	require.NoError(t, err)
	assert.Contains(t, tpl.Query, "ORDER BY caseId, e.timestamp, e.seq, elementId(e)")
	assert.Equal(t, "seq", tpl.Substitutions["tieBreak"])

	_, err = New(nil, WithTieBreak("seq) DELETE (e")).EventLogTemplate(EventLogQuery{Type: order})
	var tce *ekgerr.TemplateCompilationError
	assert.ErrorAs(t, err, &tce)
}

func TestEventLogTemplate_Invalid(t *testing.T) {
	order := orderType(t)

	_, err := New(nil).EventLogTemplate(EventLogQuery{})
	assert.Error(t, err)

	_, err = New(nil).EventLogTemplate(EventLogQuery{
		Type:  order,
		Event: []cypher.Predicate{{Field: "x) DETACH DELETE (e", Op: cypher.Eq, Value: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, ekgerr.ErrorClassSemantic, ekgerr.ClassOf(err))
}

func TestExportEventLog(t *testing.T) {
	exec := &fakeExecutor{rows: []batch.Row{
		{"caseId": "4:a:1", "entity": map[string]any{"sysId": "A1"}, "event": map[string]any{"activity": "Create", "timestamp": int64(10)}},
		{"caseId": "4:a:1", "entity": map[string]any{"sysId": "A1"}, "event": map[string]any{"activity": "Pay", "timestamp": int64(20)}},
	}}

	rows, err := New(exec).ExportEventLog(context.Background(), EventLogQuery{Type: orderType(t)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "4:a:1", rows[0].Case)
	assert.Equal(t, "A1", rows[0].Entity["sysId"])
	assert.Equal(t, "Pay", rows[1].Event["activity"])
	assert.Contains(t, exec.query, "MATCH (n:Order)<-[:CORR]-(e:Event)")
}
