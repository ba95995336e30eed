package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/schema"
)

func loadFixture(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Load("../schema/testdata/orders.yaml")
	require.NoError(t, err)
	return s
}

func nodeByRecord(t *testing.T, s *schema.Schema, typ string) *schema.NodeByRecord {
	t.Helper()
	cs := s.NodeByRecordConstructors([]string{typ})
	require.NotEmpty(t, cs)
	return cs[0]
}

func TestNodeByRecord_MergeFirst(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	tpl, err := c.NodeByRecord(nodeByRecord(t, s, "Order"), MergeFirst)
	require.NoError(t, err)

	assert.Equal(t, "Order#0", tpl.Name)
	assert.Equal(t, cypher.ModeCommit, tpl.Mode)
	q := tpl.Query
	assert.True(t, strings.HasPrefix(q, "MATCH (record:Record:OrderRecord)\n"))
	assert.Contains(t, q, "record.ekgProcessed IS NULL")
	assert.Contains(t, q, "record.orderId IS NOT NULL")
	assert.Contains(t, q, "(record.orderId <> 'n/a')")
	assert.Contains(t, q, "NOT EXISTS { MATCH (record)<-[:PREVALENCE]-(:Order) }")
	assert.Contains(t, q, "WITH record LIMIT $limit\nSET record.ekgProcessed = true\n")
	assert.Contains(t, q, "MERGE (o:Order {sysId: record.orderId})\n")
	assert.Contains(t, q, "SET o.customer = COALESCE(o.customer, record.customerId)")
	assert.Contains(t, q, "MERGE (record)<-[:PREVALENCE]-(o)")
	assert.Contains(t, q, "MATCH (event:Event)-[:PREVALENCE]->(record)\n  MERGE (event)-[:CORR]->(o)")
	assert.True(t, strings.HasSuffix(q, "RETURN count(*)"))
	assert.NotContains(t, q, "${")
	assert.Empty(t, tpl.ParamNames())
}

func TestNodeByRecord_CreateThenMerge(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	tpl, err := c.NodeByRecord(nodeByRecord(t, s, "Order"), CreateThenMerge)
	require.NoError(t, err)
	assert.Contains(t, tpl.Query, "CREATE (o:Order {sysId: record.orderId})")
	assert.NotContains(t, tpl.Query, "MERGE (o:Order")
}

func TestNodeByRecord_LabelsAndInferredRelationships(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	tpl, err := c.NodeByRecord(nodeByRecord(t, s, "Customer"), MergeFirst)
	require.NoError(t, err)
	q := tpl.Query
	assert.Contains(t, q, "MATCH (record:Record:CustomerRecord)")
	assert.Contains(t, q, "record.customerId IS NOT NULL")
	assert.Contains(t, q, "SET c:Party")
	assert.Contains(t, q, "MATCH (event:Event)-[:PREVALENCE]->(record)\n  WHERE record:EventRecord\n  MERGE (event)-[:CORR]->(c)")
}

func TestNodeByRecord_UnboundName(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	nc := *nodeByRecord(t, s, "Order")
	nc.Result.Properties[0].Value.Node = "rec"
	nc.Result.Properties[0].Value.Text = "rec.orderId"

	_, err := c.NodeByRecord(&nc, MergeFirst)
	var tce *ekgerr.TemplateCompilationError
	require.ErrorAs(t, err, &tce)
	assert.Equal(t, "Order#0", tce.Constructor)
	assert.Equal(t, "rec", tce.Name)
}

func TestCardinalityEstimate(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	tpl, err := c.CardinalityEstimate(nodeByRecord(t, s, "Order"))
	require.NoError(t, err)
	assert.Equal(t, cypher.ModeSingle, tpl.Mode)
	assert.Contains(t, tpl.Query, "RETURN count(DISTINCT [record.orderId]) AS count")
}

func TestResetMarkers(t *testing.T) {
	tpl, err := New(loadFixture(t)).ResetMarkers()
	require.NoError(t, err)
	assert.Equal(t, cypher.ModeCommit, tpl.Mode)
	assert.Equal(t, "MATCH (record:Record)\n"+
		"WHERE record.ekgProcessed IS NOT NULL\n"+
		"WITH record LIMIT $limit\n"+
		"REMOVE record.ekgProcessed\n"+
		"RETURN count(*)", tpl.Query)
}

func TestMergeSameIdentifier(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	order, _ := s.Type("Order")
	tpl, err := c.MergeSameIdentifier(order)
	require.NoError(t, err)
	assert.Equal(t, cypher.ModeIterate, tpl.Mode)
	assert.Contains(t, tpl.Source, "MATCH (n:Order)")
	assert.Contains(t, tpl.Source, "WITH n.sysId AS sysId, collect(n) AS nodes")
	assert.Contains(t, tpl.Query, "apoc.refactor.mergeNodes(nodes, {properties: 'discard', mergeRels: true})")

	placement, _ := s.Type("Placement")
	_, err = c.MergeSameIdentifier(placement)
	assert.Error(t, err, "surrogate-id types cannot be merged on keys")
}

func TestNodeBySubgraph(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	cs := s.NodeBySubgraphConstructors([]string{"Placement"})
	require.Len(t, cs, 1)
	tpl, err := c.NodeBySubgraph(cs[0])
	require.NoError(t, err)
	assert.Equal(t, cypher.ModeIterate, tpl.Mode)
	assert.Equal(t, "MATCH (o:Order)-[:PLACED_BY]->(c:Customer)\nRETURN DISTINCT o, c", tpl.Source)
	assert.Equal(t, "MERGE (o)<-[:REIFIED]-(p:Placement)-[:REIFIED]->(c)", tpl.Query)
}

func TestRelationByRecord(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	cs := s.RelationByRecordConstructors([]string{"PLACED_BY"})
	require.Len(t, cs, 1)
	tpl, err := c.RelationByRecord(cs[0])
	require.NoError(t, err)
	q := tpl.Query
	assert.Equal(t, cypher.ModeCommit, tpl.Mode)
	assert.Contains(t, q, "SET record.ekgProcessed = true\nWITH record\nCALL {")
	assert.Contains(t, q, "MATCH (o:Order)-[:PREVALENCE]->(record)")
	assert.Contains(t, q, "MATCH (c:Customer)-[:PREVALENCE]->(record)")
	assert.Contains(t, q, "MERGE (o)-[rel:PLACED_BY]->(c)")
	assert.True(t, strings.HasSuffix(q, "}\nRETURN count(*)"))
}

func TestRelationByRecord_ModelAsNode(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	cs := s.RelationByRecordConstructors([]string{"Shipment"})
	require.Len(t, cs, 1)
	tpl, err := c.RelationByRecord(cs[0])
	require.NoError(t, err)
	assert.Contains(t, tpl.Query, "MERGE (o)-[:FROM]->(rel:Shipment)-[:TO]->(c)")
	assert.Contains(t, tpl.Query, "MERGE (rel)-[:PREVALENCE]->(record)")
}

func TestRelationBySubgraph(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	cs := s.RelationBySubgraphConstructors([]string{"SAME_CUSTOMER"})
	require.Len(t, cs, 1)
	tpl, err := c.RelationBySubgraph(cs[0])
	require.NoError(t, err)
	assert.Equal(t, "MATCH (c:Customer), (o1:Order)-[:PLACED_BY]->(c), (o2:Order)-[:PLACED_BY]->(c)\n"+
		"RETURN DISTINCT o1, o2, c", tpl.Source)
	assert.Equal(t, "MERGE (o1)-[rel:SAME_CUSTOMER]->(o2)\n"+
		"SET rel.customer = COALESCE(rel.customer, c.sysId)", tpl.Query)
}

func TestCorrelateReifiedParents(t *testing.T) {
	s := loadFixture(t)
	c := New(s)

	placement, _ := s.Type("Placement")
	tpls, err := c.CorrelateReifiedParents(placement)
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.Contains(t, tpls[0].Source, "MATCH (e:Event)-[:CORR]->(parent)<-[:REIFIED]-(n:Placement)")
	assert.Equal(t, "MERGE (e)-[:CORR]->(n)", tpls[0].Query)

	shipment, _ := s.Type("Shipment")
	tpls, err = c.CorrelateReifiedParents(shipment)
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.Contains(t, tpls[0].Source, "(parent)-[:FROM|TO]-(n:Shipment)")

	order, _ := s.Type("Order")
	tpls, err = c.CorrelateReifiedParents(order)
	require.NoError(t, err)
	assert.Empty(t, tpls)
}

func TestDirectlyFollows(t *testing.T) {
	s := loadFixture(t)
	order, _ := s.Type("Order")

	tpl, err := New(s).DirectlyFollows(order)
	require.NoError(t, err)
	assert.Equal(t, cypher.ModeIterate, tpl.Mode)
	assert.Contains(t, tpl.Source, "MATCH (n:Order)<-[:CORR]-(e:Event)")
	assert.Contains(t, tpl.Source, "WITH DISTINCT n, e ORDER BY e.timestamp, elementId(e)")
	assert.Contains(t, tpl.Source, "RETURN events[i] AS first, events[i + 1] AS second")
	assert.Contains(t, tpl.Query, "MERGE (first)-[df:DF_ORDER {entityType: $entityType}]->(second)")
	assert.Contains(t, tpl.Query, "SET df.type = 'DF'")
	assert.NotContains(t, tpl.Query, "duration")
	assert.Equal(t, map[string]any{"entityType": "Order"}, tpl.Params)

	tpl, err = New(s, WithTieBreak("seq"), WithTimestampAttribute("ts"), WithDuration(true)).DirectlyFollows(order)
	require.NoError(t, err)
	assert.Contains(t, tpl.Source, "ORDER BY e.ts, e.seq, elementId(e)")
	assert.Contains(t, tpl.Query, "duration.between(first.ts, second.ts)")

	event, _ := s.Type("Event")
	_, err = New(s).DirectlyFollows(event)
	assert.Error(t, err)
}

func TestDirectlyFollows_InferredRelationshipNotMatched(t *testing.T) {
	s, err := schema.Parse([]byte(`
records:
  - "(record:EventRecord {timestamp})"
  - "(record:OrderRecord {orderId})"
nodes:
  - type: Order
    infer_df: true
    constructor:
      - prevalent_record: "(record:OrderRecord)"
        result: "(o:Order {sysId: record.orderId})"
        infer_corr_from_event_record: true
        inferred_relationships:
          - record_labels: EventRecord
            relation_type: ACTS_ON
`))
	require.NoError(t, err)
	order, _ := s.Type("Order")

	tpl, err := New(s).DirectlyFollows(order)
	require.NoError(t, err)
	// an event reached over both CORR and ACTS_ON must be paired once
	assert.Contains(t, tpl.Source, "MATCH (n:Order)<-[:CORR]-(e:Event)")
	assert.NotContains(t, tpl.Source, "ACTS_ON")
	assert.Contains(t, tpl.Source, "WITH DISTINCT n, e ORDER BY")
}

func TestDirectlyFollows_RelationModeledAsNode(t *testing.T) {
	s, err := schema.Parse([]byte(`
records:
  - "(record:OrderRecord {orderId, customerId})"
nodes:
  - type: Order
    constructor:
      - prevalent_record: "(record:OrderRecord)"
        result: "(o:Order {sysId: record.orderId})"
  - type: Customer
    constructor:
      - prevalent_record: "(record:OrderRecord)"
        result: "(c:Customer {sysId: record.customerId})"
relations:
  - type: Shipment
    model_as_node: true
    infer_df: true
    delete_parallel_df: true
    constructor:
      - prevalent_record: "(record:OrderRecord)"
        from_node: "(o:Order)"
        to_node: "(c:Customer)"
        infer_corr_from_reified_parents: true
`))
	require.NoError(t, err)
	c := New(s)
	shipment, _ := s.Type("Shipment")

	tpl, err := c.DirectlyFollows(shipment)
	require.NoError(t, err)
	assert.Equal(t, "Shipment/df", tpl.Name)
	assert.Contains(t, tpl.Source, "MATCH (n:Shipment)<-[:CORR]-(e:Event)")
	assert.Equal(t, map[string]any{"entityType": "Shipment"}, tpl.Params)

	assert.Equal(t, []string{"Order", "Customer"}, c.ParentTypes(shipment))
	tpl, err = c.DeleteParallelDF(shipment)
	require.NoError(t, err)
	assert.Equal(t, []string{"Order", "Customer"}, tpl.Params["parentTypes"])
}

func TestMergeDuplicateDF(t *testing.T) {
	s := loadFixture(t)
	order, _ := s.Type("Order")

	tpl, err := New(s).MergeDuplicateDF(order)
	require.NoError(t, err)
	assert.Contains(t, tpl.Source, "MATCH (n1:Event)-[df:DF_ORDER {entityType: $entityType}]->(n2:Event)")
	assert.Contains(t, tpl.Query, "FOREACH (r IN dfs | DELETE r)")
	assert.Contains(t, tpl.Query, "merged.count = size(dfs)")
}

func TestDeleteParallelDF(t *testing.T) {
	s := loadFixture(t)
	c := New(s)
	placement, _ := s.Type("Placement")

	assert.Equal(t, []string{"Order", "Customer"}, c.ParentTypes(placement))

	tpl, err := c.DeleteParallelDF(placement)
	require.NoError(t, err)
	assert.Equal(t, cypher.ModeCommit, tpl.Mode)
	assert.Contains(t, tpl.Query, "MATCH (e1:Event)-[df:DF {entityType: $entityType}]->(e2:Event)")
	assert.Contains(t, tpl.Query, "p.entityType IN $parentTypes")
	assert.Equal(t, []string{"Order", "Customer"}, tpl.Params["parentTypes"])
	assert.Equal(t, []string{"entityType", "parentTypes"}, tpl.ParamNames())
}

func TestPrepareDatabase(t *testing.T) {
	tpls, err := New(loadFixture(t)).PrepareDatabase()
	require.NoError(t, err)
	require.NotEmpty(t, tpls)
	assert.Equal(t, "CREATE INDEX ekg_record_marker IF NOT EXISTS FOR (n:Record) ON (n.ekgProcessed)", tpls[0].Query)

	var queries []string
	for _, tpl := range tpls {
		queries = append(queries, tpl.Query)
	}
	assert.Contains(t, queries, "CREATE INDEX ekg_order_id IF NOT EXISTS FOR (n:Order) ON (n.sysId)")
}
