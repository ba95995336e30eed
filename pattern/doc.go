// Package pattern parses and renders the graph-pattern fragments used in
// schema documents.
//
// Three pattern forms are supported:
//
//	(name:Label1:Label2 {attr: record.column, OPTIONAL other: "x"})
//	(name:Label WHERE name.kind = "A")
//	(from:Order)-[r:PLACED_BY:OWNED_BY {since: $since}]->(to:Customer)
//	(record:OrderRecord WHERE record.total > 0 {orderId, OPTIONAL note})
//
// A node pattern carries either an inline property map or a trailing WHERE
// condition, never both. A record pattern is a node pattern whose labels are
// record-type tags on nodes carrying the implicit Record label, followed by
// an optional list of required and optional attribute names.
//
// Parsing is pure. Every failure is reported as an
// *ekgerr.MalformedPatternError naming the offending fragment. Rendering with
// String produces text that parses back to an equal pattern.
package pattern
