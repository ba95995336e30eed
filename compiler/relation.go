package compiler

import (
	"slices"
	"strings"

	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/pattern"
	"github.com/zero-day-ai/ekg/schema"
)

// relationShape renders the MERGE clauses shared by both relation
// constructor variants: a plain relationship, or FROM/TO edges around a node
// when the type is modeled as nodes.
type relationShape struct {
	typ      *schema.EntityType
	from, to pattern.Node
	result   pattern.Relationship
	optional []pattern.Property
	asNode   bool
}

func (r relationShape) alias() string {
	return r.result.Alias()
}

// merge returns the MERGE and SET clauses and registers their substitutions.
func (r relationShape) merge(b *cypher.Builder) []string {
	var out []string
	if r.asNode {
		node := pattern.Node{Name: r.alias(), Labels: r.typ.Labels(), Properties: r.result.Properties}
		out = append(out, "MERGE (${from})-[:${fromRel}]->${relNode}-[:${toRel}]->(${to})")
		b.Fragment("relNode", cypher.NodePattern(node)).
			Identifier("fromRel", FromRel).
			Identifier("toRel", ToRel)
	} else {
		out = append(out, "MERGE ${rel}")
		b.Fragment("rel", cypher.RelationshipPattern(r.result, r.alias()))
	}
	if len(r.optional) > 0 {
		out = append(out, "SET ${coalesce}")
		b.Fragment("coalesce", cypher.SetCoalesce(r.alias(), r.optional))
	}
	b.Identifier("from", r.from.Alias()).Identifier("to", r.to.Alias())
	return out
}

// RelationByRecord compiles a by-record relation constructor into a
// commit-mode template. Both endpoints must prevail from the same record.
// Records whose endpoints are missing are still claimed, so the loop always
// terminates.
func (c *Compiler) RelationByRecord(rc *schema.RelationByRecord) (cypher.Template, error) {
	t, ok := c.schema.Type(rc.Owner())
	if !ok {
		return cypher.Template{}, compileError(rc.ID(), rc.Owner(), "unknown type")
	}
	shape := relationShape{
		typ: t, from: rc.From, to: rc.To,
		result: rc.Result, optional: rc.OptionalProperties, asNode: rc.ModelAsNode,
	}
	rec := rc.Record
	recAlias := rec.Alias()
	if err := checkDistinct(rc.ID(), recAlias, rc.From.Alias(), rc.To.Alias(), shape.alias()); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(rc.ID(), append(rc.From.References(), rc.To.References()...), recAlias); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(rc.ID(), propertyRefs(rc.Result.Properties), recAlias, rc.From.Alias(), rc.To.Alias()); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(rc.ID(), propertyRefs(rc.OptionalProperties), recAlias, rc.From.Alias(), rc.To.Alias(), shape.alias()); err != nil {
		return cypher.Template{}, err
	}
	filter, err := c.recordFilter(rc.ID(), rec, rc.From, rc.To)
	if err != nil {
		return cypher.Template{}, err
	}

	b := cypher.NewCommit(rc.ID(), "").
		Identifier("rec", recAlias).
		Labels("recordLabels", rec.AllLabels()...).
		Fragment("filter", and(filter)).
		Identifier("marker", ProcessedMarker).
		Identifier("prevalence", Prevalence).
		Fragment("fromNode", cypher.NodePattern(rc.From)).
		Fragment("toNode", cypher.NodePattern(rc.To))

	q := []string{
		"MATCH (${rec}:${recordLabels})",
		"WHERE ${filter}",
		"WITH ${rec} LIMIT $limit",
		"SET ${rec}.${marker} = true",
		"WITH ${rec}",
		"CALL {",
		"  WITH ${rec}",
		"  MATCH ${fromNode}-[:${prevalence}]->(${rec})",
		"  MATCH ${toNode}-[:${prevalence}]->(${rec})",
	}
	if conds := cypher.WhereConditions(rc.From, rc.To); len(conds) > 0 {
		q = append(q, "  WHERE ${where}")
		b.Fragment("where", and(conds))
	}
	for _, l := range shape.merge(b) {
		q = append(q, "  "+l)
	}
	if rc.ModelAsNode {
		q = append(q, "  MERGE (${relAlias})-[:${prevalence}]->(${rec})")
		b.Identifier("relAlias", shape.alias())
	}
	q = append(q, "}", "RETURN count(*)")

	return b.Query(lines(q...)).Build()
}

// RelationBySubgraph compiles a by-subgraph relation constructor into an
// iterate-mode template. The node and relation patterns are matched in one
// MATCH clause so distinct relationship patterns bind distinct
// relationships.
func (c *Compiler) RelationBySubgraph(rc *schema.RelationBySubgraph) (cypher.Template, error) {
	t, ok := c.schema.Type(rc.Owner())
	if !ok {
		return cypher.Template{}, compileError(rc.ID(), rc.Owner(), "unknown type")
	}
	shape := relationShape{
		typ: t, from: rc.From, to: rc.To,
		result: rc.Result, optional: rc.OptionalProperties, asNode: rc.ModelAsNode,
	}

	var (
		parts  []string
		bound  []string
		wheres []pattern.Node
	)
	bind := func(n pattern.Node) bool {
		if slices.Contains(bound, n.Alias()) {
			return false
		}
		bound = append(bound, n.Alias())
		return true
	}
	for _, n := range rc.Nodes {
		if !bind(n) {
			return cypher.Template{}, compileError(rc.ID(), n.Alias(), "node pattern declared twice")
		}
		parts = append(parts, cypher.NodePattern(n))
		wheres = append(wheres, n)
	}
	for _, r := range rc.Relations {
		bind(r.From)
		bind(r.To)
		if r.Name != "" {
			bound = append(bound, r.Name)
		}
		parts = append(parts, cypher.MatchRelationship(r))
		wheres = append(wheres, r.From, r.To)
	}
	for _, end := range []pattern.Node{rc.From, rc.To} {
		if bind(end) {
			parts = append(parts, cypher.NodePattern(end))
		}
		wheres = append(wheres, end)
	}
	if slices.Contains(bound, shape.alias()) {
		return cypher.Template{}, compileError(rc.ID(), shape.alias(), "result alias shadows a matched pattern")
	}
	for _, n := range wheres {
		if err := checkRefs(rc.ID(), n.References(), bound...); err != nil {
			return cypher.Template{}, err
		}
	}
	if err := checkRefs(rc.ID(), propertyRefs(rc.Result.Properties), bound...); err != nil {
		return cypher.Template{}, err
	}
	if err := checkRefs(rc.ID(), propertyRefs(rc.OptionalProperties), append(bound, shape.alias())...); err != nil {
		return cypher.Template{}, err
	}

	returns := []string{rc.From.Alias(), rc.To.Alias()}
	for _, ref := range append(propertyRefs(rc.Result.Properties), propertyRefs(rc.OptionalProperties)...) {
		if ref != shape.alias() && !slices.Contains(returns, ref) && !builtinNamespaces[ref] {
			returns = append(returns, ref)
		}
	}

	source := []string{"MATCH ${match}"}
	conds := cypher.WhereConditions(wheres...)
	if len(conds) > 0 {
		source = append(source, "WHERE ${where}")
	}
	source = append(source, "RETURN DISTINCT ${returns}")

	b := cypher.NewIterate(rc.ID(), lines(source...), "").
		Fragment("match", strings.Join(parts, ", ")).
		Fragment("where", and(conds)).
		Fragment("returns", strings.Join(returns, ", "))
	return b.Query(lines(shape.merge(b)...)).Build()
}

// CorrelateReifiedParents compiles, per correlation type, the query linking a
// reified type's nodes to every event correlated with one of its parents.
// Parents are REIFIED targets for reified node types and FROM/TO neighbours
// for relation types modeled as nodes.
func (c *Compiler) CorrelateReifiedParents(t *schema.EntityType) ([]cypher.Template, error) {
	type corr struct{ event, typ string }
	var (
		pairs []corr
		link  string
	)
	add := func(flag bool, event, typ string) {
		if flag && !slices.Contains(pairs, corr{event, typ}) {
			pairs = append(pairs, corr{event, typ})
		}
	}
	for _, con := range t.Constructors {
		switch con := con.(type) {
		case *schema.NodeBySubgraph:
			add(con.InferCorrFromReifiedParents, con.EventLabel, con.CorrType)
			link = "<-[:" + Reified + "]-"
		case *schema.RelationByRecord:
			add(con.InferCorrFromReifiedParents && con.ModelAsNode, con.EventLabel, con.CorrType)
			link = "-[:" + FromRel + "|" + ToRel + "]-"
		case *schema.RelationBySubgraph:
			add(con.InferCorrFromReifiedParents && con.ModelAsNode, con.EventLabel, con.CorrType)
			link = "-[:" + FromRel + "|" + ToRel + "]-"
		}
	}

	var out []cypher.Template
	for _, p := range pairs {
		tpl, err := cypher.NewIterate(t.Name+"/correlate_reified_parents",
			lines(
				"MATCH (e:${event})-[:${corr}]->(parent)${link}(n:${labels})",
				"WHERE NOT EXISTS { MATCH (e)-[:${corr}]->(n) }",
				"RETURN DISTINCT e, n",
			),
			"MERGE (e)-[:${corr}]->(n)",
		).
			Identifier("event", p.event).
			Identifier("corr", p.typ).
			Fragment("link", link).
			Labels("labels", t.Labels()...).
			Build()
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}
