// Package compiler turns schema constructors into Cypher query templates.
//
// Every template is built with the cypher.Builder so that labels,
// relationship types and rendered patterns are substituted structurally
// while values stay runtime parameters. By-record templates run in commit
// mode: each execution claims up to $limit unprocessed records by setting
// the processed marker, and the store repeats the statement until no
// records remain. Subgraph and directly-follows templates run in iterate
// mode over a row source.
//
// The compiler is pure. It never talks to the store; the merge-vs-create
// decision takes a cardinality estimated by the caller with
// CardinalityEstimate.
package compiler
