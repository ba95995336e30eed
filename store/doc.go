// Package store adapts a Neo4j database to the batch engine.
//
// A Neo4jStore owns the driver. Each pipeline run opens one Session, which
// runs plain queries and store-managed batched operations through APOC:
// commit-mode templates become apoc.periodic.commit calls and iterate-mode
// templates become apoc.periodic.iterate calls with parallel execution
// disabled. The statements are passed as parameters, never spliced into the
// wrapping call.
package store
