package compiler

import (
	"slices"
	"strings"

	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/pattern"
	"github.com/zero-day-ai/ekg/schema"
)

func relTypes(id string, types []string) (string, error) {
	for _, t := range types {
		if !pattern.IsIdentifier(t) {
			return "", compileError(id, t, "invalid relationship type")
		}
	}
	return strings.Join(types, "|"), nil
}

// DirectlyFollows compiles the iterate-mode template inferring
// directly-follows edges for one type. Per entity instance, correlated
// events are ordered by timestamp, then by the tie-break attribute if
// configured, then by element id, and consecutive pairs are linked.
func (c *Compiler) DirectlyFollows(t *schema.EntityType) (cypher.Template, error) {
	if !t.InferDF {
		return cypher.Template{}, compileError(t.Name, "", "type does not infer directly-follows edges")
	}
	id := t.Name + "/df"
	corr, err := relTypes(id, t.CorrTypes())
	if err != nil {
		return cypher.Template{}, err
	}

	order := []string{"e.${ts}"}
	if c.tieBreak != "" {
		order = append(order, "e.${tieBreak}")
	}
	order = append(order, "elementId(e)")

	action := []string{
		"MERGE (first)-[df:${df} {entityType: $entityType}]->(second)",
		"SET df.type = '${dfType}'",
	}
	if c.duration {
		action = append(action,
			"SET df.duration = CASE",
			"  WHEN first.${ts} IS :: INTEGER | FLOAT AND second.${ts} IS :: INTEGER | FLOAT",
			"    THEN second.${ts} - first.${ts}",
			"  WHEN first.${ts} IS :: ZONED DATETIME | LOCAL DATETIME | DATE AND second.${ts} IS :: ZONED DATETIME | LOCAL DATETIME | DATE",
			"    THEN duration.between(first.${ts}, second.${ts})",
			"  ELSE null",
			"END",
		)
	}

	b := cypher.NewIterate(id,
		lines(
			"MATCH (n:${labels})<-[:${corr}]-(e:${event})",
			"WHERE e.${ts} IS NOT NULL",
			"WITH DISTINCT n, e ORDER BY "+strings.Join(order, ", "),
			"WITH n, collect(e) AS events",
			"UNWIND range(0, size(events) - 2) AS i",
			"RETURN events[i] AS first, events[i + 1] AS second",
		),
		lines(action...),
	).
		Labels("labels", t.Labels()...).
		Fragment("corr", corr).
		Identifier("event", t.EventLabel()).
		Identifier("ts", c.timestamp).
		Identifier("df", t.DFLabel()).
		Identifier("dfType", schema.DFType).
		Bind("entityType", t.Name)
	if c.tieBreak != "" {
		b.Identifier("tieBreak", c.tieBreak)
	}
	return b.Build()
}

// MergeDuplicateDF compiles the template replacing parallel
// directly-follows edges of the same type and entity type by one edge that
// records how many were merged.
func (c *Compiler) MergeDuplicateDF(t *schema.EntityType) (cypher.Template, error) {
	return cypher.NewIterate(t.Name+"/merge_duplicate_df",
		lines(
			"MATCH (n1:${event})-[df:${df} {entityType: $entityType}]->(n2:${event})",
			"WITH n1, n2, collect(df) AS dfs",
			"WHERE size(dfs) > 1",
			"RETURN n1, n2, dfs",
		),
		lines(
			"FOREACH (r IN dfs | DELETE r)",
			"MERGE (n1)-[merged:${df} {entityType: $entityType}]->(n2)",
			"SET merged.count = size(dfs), merged.type = '${dfType}'",
		),
	).
		Identifier("event", t.EventLabel()).
		Identifier("df", t.DFLabel()).
		Identifier("dfType", schema.DFType).
		Bind("entityType", t.Name).
		Build()
}

// ParentTypes returns the names of the types whose instances a reified type
// connects: the endpoint types of its relation patterns.
func (c *Compiler) ParentTypes(t *schema.EntityType) []string {
	var out []string
	add := func(labels []string) {
		for _, l := range labels {
			if p, ok := c.schema.Type(l); ok && !slices.Contains(out, p.Name) {
				out = append(out, p.Name)
				return
			}
		}
	}
	for _, con := range t.Constructors {
		switch con := con.(type) {
		case *schema.NodeBySubgraph:
			add(con.Relation.FromLabels())
			add(con.Relation.ToLabels())
		case *schema.RelationByRecord:
			add(con.From.Labels)
			add(con.To.Labels)
		case *schema.RelationBySubgraph:
			add(con.From.Labels)
			add(con.To.Labels)
		}
	}
	return out
}

// DeleteParallelDF compiles the commit-mode template deleting a reified
// type's directly-follows edges that run parallel to an edge of one of its
// parent types.
func (c *Compiler) DeleteParallelDF(t *schema.EntityType) (cypher.Template, error) {
	parents := c.ParentTypes(t)
	if len(parents) == 0 {
		return cypher.Template{}, compileError(t.Name, "", "type has no parent types")
	}
	return cypher.NewCommit(t.Name+"/delete_parallel_df", lines(
		"MATCH (e1:${event})-[df:${df} {entityType: $entityType}]->(e2:${event})",
		"WHERE EXISTS { MATCH (e1)-[p]->(e2) WHERE p.type = '${dfType}' AND p.entityType IN $parentTypes }",
		"WITH df LIMIT $limit",
		"DELETE df",
		"RETURN count(*)",
	)).
		Identifier("event", t.EventLabel()).
		Identifier("df", t.DFLabel()).
		Identifier("dfType", schema.DFType).
		Bind("entityType", t.Name).
		Bind("parentTypes", parents).
		Build()
}
