package compiler

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/pattern"
	"github.com/zero-day-ai/ekg/schema"
)

// NodeByRecord compiles a by-record node constructor into a commit-mode
// template. Surrogate-id types are always created since there is nothing to
// merge on.
//
// Each execution claims up to $limit records that carry no marker and have
// no result of the type yet, so reruns never produce a second result from
// the same record.
func (c *Compiler) NodeByRecord(nc *schema.NodeByRecord, strategy Strategy) (cypher.Template, error) {
	t, ok := c.schema.Type(nc.Owner())
	if !ok {
		return cypher.Template{}, compileError(nc.ID(), nc.Owner(), "unknown type")
	}
	rec, res := nc.Record, nc.Result
	recAlias, resAlias := rec.Alias(), res.Alias()
	if err := checkDistinct(nc.ID(), recAlias, resAlias); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(nc.ID(), res.References(), recAlias); err != nil {
		return cypher.Template{}, err
	}
	filter, err := c.recordFilter(nc.ID(), rec, res)
	if err != nil {
		return cypher.Template{}, err
	}
	filter = append(filter, fmt.Sprintf("NOT EXISTS { MATCH (%s)<-[:%s]-(%s) }", recAlias, Prevalence, cypher.Labels(res.Labels)))

	verb := "MERGE"
	if strategy == CreateThenMerge || t.SurrogateID() {
		verb = "CREATE"
	}

	q := []string{
		"MATCH (${rec}:${recordLabels})",
		"WHERE ${filter}",
		"WITH ${rec} LIMIT $limit",
		"SET ${rec}.${marker} = true",
		verb + " ${result}",
	}
	if len(nc.SetLabels) > 0 {
		q = append(q, "SET ${res}:${setLabels}")
	}
	if len(res.Optional()) > 0 {
		q = append(q, "SET ${coalesce}")
	}
	q = append(q, "MERGE (${rec})<-[:${prevalence}]-(${res})")

	b := cypher.NewCommit(nc.ID(), "").
		Identifier("rec", recAlias).
		Identifier("res", resAlias).
		Labels("recordLabels", rec.AllLabels()...).
		Fragment("filter", and(filter)).
		Identifier("marker", ProcessedMarker).
		Identifier("prevalence", Prevalence).
		Fragment("result", cypher.NodePattern(res)).
		Fragment("coalesce", cypher.SetCoalesce(resAlias, res.Optional()))
	if len(nc.SetLabels) > 0 {
		b.Labels("setLabels", nc.SetLabels...)
	}

	for i, ir := range nc.InferredRelationships {
		ev := ir.Event
		if err := checkDistinct(nc.ID(), recAlias, resAlias, ev.Alias()); err != nil {
			return cypher.Template{}, err
		}
		if err := checkRefs(nc.ID(), ev.References(), recAlias, resAlias); err != nil {
			return cypher.Template{}, err
		}
		cond := []string{recAlias + cypher.Labels(ir.RecordTypes)}
		cond = append(cond, cypher.WhereConditions(ev)...)
		q = append(q,
			"CALL {",
			"  WITH ${rec}, ${res}",
			fmt.Sprintf("  MATCH ${irEvent%d}-[:${prevalence}]->(${rec})", i),
			fmt.Sprintf("  WHERE ${irCond%d}", i),
			fmt.Sprintf("  MERGE (${irAlias%d})-[:${irType%d}]->(${res})", i, i),
			"}",
		)
		b.Fragment(fmt.Sprintf("irEvent%d", i), cypher.NodePattern(ev)).
			Identifier(fmt.Sprintf("irAlias%d", i), ev.Alias()).
			Fragment(fmt.Sprintf("irCond%d", i), and(cond)).
			Identifier(fmt.Sprintf("irType%d", i), ir.RelationType)
	}
	if nc.InferCorrFromEventRecord || nc.InferCorrFromEntityRecord {
		q = append(q,
			"CALL {",
			"  WITH ${rec}, ${res}",
			"  MATCH (event:${eventLabel})-[:${prevalence}]->(${rec})",
			"  MERGE (event)-[:${corrType}]->(${res})",
			"}",
		)
	}
	if nc.InferObserved {
		q = append(q,
			"CALL {",
			"  WITH ${rec}, ${res}",
			"  MATCH (event:${eventLabel})-[:${prevalence}]->(${rec})",
			"  MERGE (${res})-[:${observed}]->(event)",
			"}",
		)
		b.Identifier("observed", Observed)
	}
	if nc.InferCorrFromEventRecord || nc.InferCorrFromEntityRecord || nc.InferObserved {
		if err := checkDistinct(nc.ID(), recAlias, resAlias, "event"); err != nil {
			return cypher.Template{}, err
		}
		b.Identifier("eventLabel", nc.EventLabel).Identifier("corrType", nc.CorrType)
	}
	q = append(q, "RETURN count(*)")

	return b.Query(lines(q...)).Build()
}

// CardinalityEstimate compiles a query returning, as "count", the number of
// distinct identifier values the constructor would produce from the records
// it has not yet consumed.
func (c *Compiler) CardinalityEstimate(nc *schema.NodeByRecord) (cypher.Template, error) {
	rec, res := nc.Record, nc.Result
	recAlias := rec.Alias()
	filter, err := c.recordFilter(nc.ID(), rec, res)
	if err != nil {
		return cypher.Template{}, err
	}

	var keys []string
	for _, id := range res.Identifiers() {
		for _, p := range res.Required() {
			if p.Attribute == id {
				keys = append(keys, p.Value.Text)
			}
		}
	}
	count := "count(" + recAlias + ")"
	if len(keys) > 0 {
		count = "count(DISTINCT [" + strings.Join(keys, ", ") + "])"
	}

	return cypher.New(nc.ID()+"/cardinality", lines(
		"MATCH (${rec}:${recordLabels})",
		"WHERE ${filter}",
		"RETURN ${count} AS count",
	)).
		Identifier("rec", recAlias).
		Fragment("filter", and(filter)).
		Fragment("count", count).
		Labels("recordLabels", rec.AllLabels()...).
		Build()
}

// ResetMarkers compiles the commit-mode query clearing the processed marker
// from all records.
func (c *Compiler) ResetMarkers() (cypher.Template, error) {
	return cypher.NewCommit("reset_markers", lines(
		"MATCH (record:${record})",
		"WHERE record.${marker} IS NOT NULL",
		"WITH record LIMIT $limit",
		"REMOVE record.${marker}",
		"RETURN count(*)",
	)).
		Identifier("record", pattern.RecordLabel).
		Identifier("marker", ProcessedMarker).
		Build()
}

// MergeSameIdentifier compiles the query that collapses nodes of a type
// sharing all identifier values into one node. The node with the lowest
// element id survives; relationships are moved onto it.
func (c *Compiler) MergeSameIdentifier(t *schema.EntityType) (cypher.Template, error) {
	keys := t.IdentifierKeys()
	if len(keys) == 0 {
		return cypher.Template{}, compileError(t.Name, "", "type has no identifier keys to merge on")
	}
	var group, notNull []string
	for _, k := range keys {
		group = append(group, fmt.Sprintf("n.%s AS %s", k, k))
		notNull = append(notNull, fmt.Sprintf("n.%s IS NOT NULL", k))
	}

	return cypher.NewIterate(t.Name+"/merge_same_identifier",
		lines(
			"MATCH (n:${labels})",
			"WHERE "+and(notNull),
			"WITH n ORDER BY elementId(n)",
			"WITH "+strings.Join(group, ", ")+", collect(n) AS nodes",
			"WHERE size(nodes) > 1",
			"RETURN nodes",
		),
		"CALL apoc.refactor.mergeNodes(nodes, {properties: 'discard', mergeRels: true}) YIELD node RETURN count(node)",
	).
		Labels("labels", t.Labels()...).
		Build()
}

// NodeBySubgraph compiles a reification constructor: one result node per
// distinct pair of endpoints of the matched relationship.
func (c *Compiler) NodeBySubgraph(nc *schema.NodeBySubgraph) (cypher.Template, error) {
	rel, res := nc.Relation, nc.Result
	from, to, resAlias := rel.FromName(), rel.ToName(), res.Alias()
	if err := checkDistinct(nc.ID(), from, to, resAlias); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(nc.ID(), res.References(), from, to); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(nc.ID(), append(rel.From.References(), rel.To.References()...), from, to); err != nil {
		return cypher.Template{}, err
	}

	source := []string{"MATCH ${match}"}
	conds := cypher.WhereConditions(rel.From, rel.To)
	if len(conds) > 0 {
		source = append(source, "WHERE ${where}")
	}
	source = append(source, "RETURN DISTINCT ${from}, ${to}")

	var action []string
	switch {
	case nc.InferReifiedRelation:
		action = append(action, "MERGE (${from})<-[:${reified}]-${result}-[:${reified}]->(${to})")
	case len(res.Required()) > 0:
		action = append(action, "MERGE ${result}")
	default:
		return cypher.Template{}, compileError(nc.ID(), resAlias, "reified node needs identifier properties or REIFIED edges")
	}
	if len(nc.SetLabels) > 0 {
		action = append(action, "SET ${res}:${setLabels}")
	}
	if len(res.Optional()) > 0 {
		action = append(action, "SET ${coalesce}")
	}

	b := cypher.NewIterate(nc.ID(), lines(source...), lines(action...)).
		Fragment("match", cypher.MatchRelationship(rel)).
		Fragment("where", and(conds)).
		Identifier("from", from).
		Identifier("to", to).
		Identifier("res", resAlias).
		Identifier("reified", Reified).
		Fragment("result", cypher.NodePattern(res)).
		Fragment("coalesce", cypher.SetCoalesce(resAlias, res.Optional()))
	if len(nc.SetLabels) > 0 {
		b.Labels("setLabels", nc.SetLabels...)
	}
	return b.Build()
}

// PrepareDatabase compiles the index definitions the pipeline relies on: the
// processed marker on records and the identifier keys of every node type.
func (c *Compiler) PrepareDatabase() ([]cypher.Template, error) {
	tpl, err := cypher.New("index_record_marker", "CREATE INDEX ekg_record_marker IF NOT EXISTS FOR (n:${record}) ON (n.${marker})").
		Identifier("record", pattern.RecordLabel).
		Identifier("marker", ProcessedMarker).
		Build()
	if err != nil {
		return nil, err
	}
	out := []cypher.Template{tpl}

	for _, t := range c.schema.NodeTypes() {
		keys := t.IdentifierKeys()
		if len(keys) == 0 {
			continue
		}
		props := make([]string, len(keys))
		for i, k := range keys {
			props[i] = "n." + k
		}
		name := "ekg_" + strings.ToLower(t.Name) + "_id"
		tpl, err := cypher.New("index_"+t.Name, "CREATE INDEX ${name} IF NOT EXISTS FOR (n:${label}) ON (${props})").
			Identifier("name", name).
			Identifier("label", t.Labels()[0]).
			Fragment("props", strings.Join(props, ", ")).
			Build()
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}
