package cypher

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/ekg/pattern"
)

// Labels renders a label list as ":A:B". An empty list renders as "".
func Labels(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return ":" + strings.Join(labels, ":")
}

// BuildMatch generates a MATCH clause for a node with the given labels.
//
// Example:
//
//	BuildMatch("h", "Host")          // "MATCH (h:Host)"
//	BuildMatch("n", "Order", "Item") // "MATCH (n:Order:Item)"
func BuildMatch(alias string, labels ...string) string {
	return fmt.Sprintf("MATCH (%s%s)", alias, Labels(labels))
}

// BuildConditions joins predicates on alias with AND. Values are bound as
// parameters named prefix0, prefix1, ... Returns "" and nil params for no
// predicates.
//
// Example:
//
//	cond, params := BuildConditions([]Predicate{{Field: "activity", Op: Eq, Value: "Pay"}}, "e", "e")
//	// cond: "e.activity = $e0"
//	// params: {"e0": "Pay"}
func BuildConditions(predicates []Predicate, alias, prefix string) (string, map[string]any) {
	if len(predicates) == 0 {
		return "", nil
	}
	params := make(map[string]any)
	conditions := make([]string, 0, len(predicates))
	for i, pred := range predicates {
		paramName := fmt.Sprintf("%s%d", prefix, i)
		conditions = append(conditions, buildCondition(pred, alias, paramName))
		if requiresValue(pred.Op) {
			params[paramName] = pred.Value
		}
	}
	return strings.Join(conditions, " AND "), params
}

// buildCondition constructs a single WHERE condition for a predicate.
func buildCondition(pred Predicate, alias string, paramName string) string {
	fieldRef := fmt.Sprintf("%s.%s", alias, pred.Field)

	switch pred.Op {
	case Eq:
		return fmt.Sprintf("%s = $%s", fieldRef, paramName)
	case Neq:
		return fmt.Sprintf("%s <> $%s", fieldRef, paramName)
	case Lt:
		return fmt.Sprintf("%s < $%s", fieldRef, paramName)
	case Lte:
		return fmt.Sprintf("%s <= $%s", fieldRef, paramName)
	case Gt:
		return fmt.Sprintf("%s > $%s", fieldRef, paramName)
	case Gte:
		return fmt.Sprintf("%s >= $%s", fieldRef, paramName)
	case Contains:
		return fmt.Sprintf("%s CONTAINS $%s", fieldRef, paramName)
	case StartsWith:
		return fmt.Sprintf("%s STARTS WITH $%s", fieldRef, paramName)
	case EndsWith:
		return fmt.Sprintf("%s ENDS WITH $%s", fieldRef, paramName)
	case In:
		return fmt.Sprintf("%s IN $%s", fieldRef, paramName)
	case IsNull:
		return fmt.Sprintf("%s IS NULL", fieldRef)
	case IsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", fieldRef)
	default:
		return fmt.Sprintf("%s = $%s", fieldRef, paramName)
	}
}

// requiresValue returns true if the operation requires a parameter value.
func requiresValue(op Op) bool {
	return op != IsNull && op != IsNotNull
}

// BuildTraversal generates a relationship traversal pattern. from is the
// inside of the source node and may carry labels ("n:Order").
//   - "out":  (from)-[:REL]->(to:Target)
//   - "in":   (from)<-[:REL]-(to:Target)
//   - "both": (from)-[:REL]-(to:Target)
func BuildTraversal(t Traversal, from string, toAlias string) string {
	rel := fmt.Sprintf("[:%s]", t.Relationship)
	target := toAlias + Labels(t.TargetLabels)

	switch t.Direction {
	case "in":
		return fmt.Sprintf("(%s)<-%s-(%s)", from, rel, target)
	case "both":
		return fmt.Sprintf("(%s)-%s-(%s)", from, rel, target)
	default:
		return fmt.Sprintf("(%s)-%s->(%s)", from, rel, target)
	}
}

// PropertyMap renders required properties as "{a: v, b: w}". Optional
// properties are skipped; an empty map renders as "".
func PropertyMap(props []pattern.Property) string {
	var parts []string
	for _, p := range props {
		if p.Optional {
			continue
		}
		parts = append(parts, p.Attribute+": "+p.Value.Text)
	}
	if len(parts) == 0 {
		return ""
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// NodePattern renders a node for MATCH or MERGE: alias, labels and required
// properties. WHERE conditions are not included.
func NodePattern(n pattern.Node) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(n.Alias())
	b.WriteString(Labels(n.Labels))
	if m := PropertyMap(n.Properties); m != "" {
		b.WriteByte(' ')
		b.WriteString(m)
	}
	b.WriteByte(')')
	return b.String()
}

// RelationshipPattern renders a relationship between two bound endpoints,
// with only the primary type so it can be used in MERGE.
func RelationshipPattern(r pattern.Relationship, alias string) string {
	body := "[" + alias + ":" + r.PrimaryType()
	if m := PropertyMap(r.Properties); m != "" {
		body += " " + m
	}
	body += "]"
	return directed(r, "("+r.FromName()+")", body, "("+r.ToName()+")")
}

// MatchRelationship renders a full relationship pattern for MATCH,
// including endpoint labels and properties. Multiple types are matched as
// alternatives.
func MatchRelationship(r pattern.Relationship) string {
	body := "[" + r.Name
	if len(r.Types) > 0 {
		body += ":" + strings.Join(r.Types, "|")
	}
	if m := PropertyMap(r.Properties); m != "" {
		body += " " + m
	}
	body += "]"
	return directed(r, NodePattern(r.From), body, NodePattern(r.To))
}

func directed(r pattern.Relationship, from, body, to string) string {
	switch r.Direction {
	case pattern.Undirected:
		return from + "-" + body + "-" + to
	default:
		return from + "-" + body + "->" + to
	}
}

// WhereConditions collects the WHERE conditions of node patterns.
func WhereConditions(nodes ...pattern.Node) []string {
	var out []string
	for _, n := range nodes {
		if n.Where != "" {
			out = append(out, "("+n.Where+")")
		}
	}
	return out
}

// SetCoalesce renders set-if-absent assignments for optional properties:
// "n.a = COALESCE(n.a, v), n.b = COALESCE(n.b, w)".
func SetCoalesce(alias string, props []pattern.Property) string {
	var parts []string
	for _, p := range props {
		ref := alias + "." + p.Attribute
		parts = append(parts, fmt.Sprintf("%s = COALESCE(%s, %s)", ref, ref, p.Value.Text))
	}
	return strings.Join(parts, ", ")
}
