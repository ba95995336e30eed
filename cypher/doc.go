// Package cypher builds parameterized Cypher query templates.
//
// A template separates two kinds of placeholders:
//
//   - ${name} is a structural substitution (label, relationship type,
//     identifier or a fragment compiled by this module). It is resolved when
//     the template is built and validated so untrusted values can never reach
//     a structural position.
//   - $name is a runtime parameter, bound by the store at execution time.
//
// Example:
//
//	tpl, err := cypher.New("count_nodes", "MATCH (n:${labels}) WHERE n.kind = $kind RETURN count(n) AS count").
//	    Labels("labels", "Order", "Entity").
//	    Bind("kind", "retail").
//	    Build()
//	// tpl.Query: "MATCH (n:Order:Entity) WHERE n.kind = $kind RETURN count(n) AS count"
//	// tpl.Params: {"kind": "retail"}
//
// The package also carries small clause helpers (BuildMatch, BuildConditions,
// BuildTraversal) used by read queries and pattern renderers used by the
// compiler.
package cypher
