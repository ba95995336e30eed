// Package schema holds the in-memory model of an event knowledge graph
// schema: record declarations, node types and relation types together with
// the constructors that populate them.
//
// A schema is loaded once from a YAML document and is read-only afterwards:
//
//	s, err := schema.Load("orders.yaml")
//	if err != nil {
//	    return err // *ekgerr.SchemaValidationError or *ekgerr.MalformedPatternError
//	}
//	for _, c := range s.NodeByRecordConstructors(nil) {
//	    fmt.Println(c.ID())
//	}
//
// Constructors form a closed set of variants (NodeByRecord, NodeBySubgraph,
// RelationByRecord, RelationBySubgraph and ByInference). Code that needs to
// handle every variant switches on the concrete type.
//
// Transformations such as RenameAttributes return a new Schema and never
// modify the receiver.
package schema
