// Package inspect runs read-only queries against a built graph: label and
// relationship statistics and event logs of an entity type, ordered the way
// directly-follows inference orders them.
package inspect
