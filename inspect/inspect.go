package inspect

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/zero-day-ai/ekg/batch"
	"github.com/zero-day-ai/ekg/compiler"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/pattern"
	"github.com/zero-day-ai/ekg/schema"
)

// Count is the number of nodes with a label or relationships of a type.
type Count struct {
	Name  string
	Count int64
}

// Inspector runs read-only queries.
type Inspector struct {
	exec      batch.Executor
	timestamp string
	tieBreak  string
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithTimestampAttribute sets the event attribute event logs are ordered by.
func WithTimestampAttribute(attr string) Option {
	return func(i *Inspector) {
		if attr != "" {
			i.timestamp = attr
		}
	}
}

// WithTieBreak sets the event attribute that orders events with equal
// timestamps, ahead of the element id.
func WithTieBreak(attr string) Option {
	return func(i *Inspector) {
		i.tieBreak = attr
	}
}

// New returns an Inspector running queries on exec.
func New(exec batch.Executor, opts ...Option) *Inspector {
	i := &Inspector{exec: exec, timestamp: compiler.DefaultTimestamp}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NodeCounts counts nodes per label. A node with several labels is counted
// under each.
func (i *Inspector) NodeCounts(ctx context.Context) ([]Count, error) {
	return i.counts(ctx, "node_counts",
		cypher.BuildMatch("n")+" UNWIND labels(n) AS name RETURN name, count(*) AS count ORDER BY name")
}

// EdgeCounts counts relationships per type.
func (i *Inspector) EdgeCounts(ctx context.Context) ([]Count, error) {
	return i.counts(ctx, "edge_counts",
		"MATCH ()-[r]->() RETURN type(r) AS name, count(*) AS count ORDER BY name")
}

// Labels lists the labels in use.
func (i *Inspector) Labels(ctx context.Context) ([]string, error) {
	return i.names(ctx, "labels", "CALL db.labels() YIELD label RETURN label AS name ORDER BY name")
}

// RelationshipTypes lists the relationship types in use.
func (i *Inspector) RelationshipTypes(ctx context.Context) ([]string, error) {
	return i.names(ctx, "relationship_types",
		"CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType AS name ORDER BY name")
}

func (i *Inspector) counts(ctx context.Context, op, query string) ([]Count, error) {
	rows, err := i.exec.Execute(ctx, query, nil)
	if err != nil {
		return nil, wrap(op, err)
	}
	out := make([]Count, 0, len(rows))
	for _, row := range rows {
		name, _ := row["name"].(string)
		out = append(out, Count{Name: name, Count: toInt64(row["count"])})
	}
	return out, nil
}

func (i *Inspector) names(ctx context.Context, op, query string) ([]string, error) {
	rows, err := i.exec.Execute(ctx, query, nil)
	if err != nil {
		return nil, wrap(op, err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// EventLogQuery selects the event log of one entity type.
type EventLogQuery struct {
	Type *schema.EntityType
	// Entity filters entity instances
	Entity []cypher.Predicate
	// Event filters events
	Event []cypher.Predicate
	// Limit caps the number of rows; zero means no limit
	Limit int
}

// EventRow is one event of an entity instance's trace.
type EventRow struct {
	// Case is the element id of the entity instance
	Case   string
	Entity map[string]any
	Event  map[string]any
}

// EventLogTemplate compiles the event log query. Rows are grouped by entity
// instance; within an instance events follow the directly-follows order.
func (i *Inspector) EventLogTemplate(q EventLogQuery) (cypher.Template, error) {
	if q.Type == nil {
		return cypher.Template{}, ekgerr.New("inspect", "event_log", ekgerr.ErrCodeInvalidInput, "entity type is required")
	}
	for _, pred := range append(append([]cypher.Predicate(nil), q.Entity...), q.Event...) {
		if !pattern.IsIdentifier(pred.Field) {
			return cypher.Template{}, ekgerr.New("inspect", "event_log", ekgerr.ErrCodeInvalidInput,
				fmt.Sprintf("invalid predicate field %q", pred.Field))
		}
	}
	corr := q.Type.CorrTypes()
	labels := q.Type.Labels()
	event := q.Type.EventLabel()
	for _, name := range append(append(append([]string(nil), corr...), labels...), event) {
		if !pattern.IsIdentifier(name) {
			return cypher.Template{}, ekgerr.New("inspect", "event_log", ekgerr.ErrCodeInvalidInput,
				fmt.Sprintf("invalid label or relationship type %q", name))
		}
	}
	match := "MATCH " + cypher.BuildTraversal(cypher.Traversal{
		Relationship: strings.Join(corr, "|"),
		TargetLabels: []string{event},
		Direction:    "in",
	}, "n"+cypher.Labels(labels), "e")

	var conds []string
	params := map[string]any{}
	if cond, p := cypher.BuildConditions(q.Entity, "n", "n"); cond != "" {
		conds = append(conds, cond)
		maps.Copy(params, p)
	}
	if cond, p := cypher.BuildConditions(q.Event, "e", "e"); cond != "" {
		conds = append(conds, cond)
		maps.Copy(params, p)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	limit := ""
	if q.Limit > 0 {
		limit = "LIMIT $rowLimit"
		params["rowLimit"] = q.Limit
	}

	order := "caseId, e.${ts}, elementId(e)"
	if i.tieBreak != "" {
		order = "caseId, e.${ts}, e.${tieBreak}, elementId(e)"
	}

	b := cypher.New("event_log/"+q.Type.Name, strings.Join([]string{
		"${match}",
		"${where}",
		"WITH DISTINCT n, e",
		"RETURN elementId(n) AS caseId, properties(n) AS entity, properties(e) AS event",
		"ORDER BY " + order,
		"${limit}",
	}, "\n")).
		Fragment("match", match).
		Identifier("ts", i.timestamp).
		Fragment("where", where).
		Fragment("limit", limit)
	if i.tieBreak != "" {
		b.Identifier("tieBreak", i.tieBreak)
	}
	for k, v := range params {
		b.Bind(k, v)
	}
	return b.Build()
}

// ExportEventLog returns the events correlated to instances of q.Type.
func (i *Inspector) ExportEventLog(ctx context.Context, q EventLogQuery) ([]EventRow, error) {
	tpl, err := i.EventLogTemplate(q)
	if err != nil {
		return nil, err
	}
	rows, err := i.exec.Execute(ctx, tpl.Query, tpl.Params)
	if err != nil {
		return nil, wrap("event_log", err)
	}

	out := make([]EventRow, 0, len(rows))
	for _, row := range rows {
		r := EventRow{}
		r.Case, _ = row["caseId"].(string)
		r.Entity, _ = row["entity"].(map[string]any)
		r.Event, _ = row["event"].(map[string]any)
		out = append(out, r)
	}
	return out, nil
}

func wrap(op string, err error) error {
	return ekgerr.New("inspect", op, ekgerr.ErrCodeQueryFailed, "read query failed").WithCause(err)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
