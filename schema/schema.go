package schema

import (
	"strings"

	"github.com/zero-day-ai/ekg/pattern"
)

const (
	// DefaultEventLabel is the label carried by event nodes
	DefaultEventLabel = "Event"
	// DefaultCorrType is the relationship type linking events to entities
	DefaultCorrType = "CORR"
	// AttributeLabel marks attribute-like node types
	AttributeLabel = "EntityAttribute"
	// DFType is the relationship type of directly-follows edges
	DFType = "DF"
)

// EntityType is a node type or relation type together with its constructors.
type EntityType struct {
	Name         string
	Kind         Kind
	Constructors []Constructor

	InferDF          bool
	IncludeLabelInDF bool
	MergeDuplicateDF bool
	DeleteParallelDF bool

	ModelAsNode bool

	// EventLike types are populated at event scale; AttributeLike types hold
	// per-record attribute values. Both always use create-then-merge.
	EventLike     bool
	AttributeLike bool
}

// Labels returns the labels of the type's nodes: the result labels of the
// first node constructor, or the type name.
func (t *EntityType) Labels() []string {
	for _, c := range t.Constructors {
		switch c := c.(type) {
		case *NodeByRecord:
			return c.ResultLabels()
		case *NodeBySubgraph:
			return c.ResultLabels()
		}
	}
	return []string{t.Name}
}

// DFLabel returns the relationship type used for the type's directly-follows
// edges: DF_<NAME> when the label is included, DF otherwise.
func (t *EntityType) DFLabel() string {
	if t.IncludeLabelInDF {
		return DFType + "_" + strings.ToUpper(t.Name)
	}
	return DFType
}

// CorrTypes returns the distinct correlation types used by the type's
// constructors in declaration order. Inferred relationship types are not
// correlation types.
func (t *EntityType) CorrTypes() []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	add := func(ct string) {
		if ct != "" && !seen[ct] {
			seen[ct] = true
			out = append(out, ct)
		}
	}
	for _, c := range t.Constructors {
		switch c := c.(type) {
		case *NodeByRecord:
			add(c.CorrType)
		case *NodeBySubgraph:
			add(c.CorrType)
		case *RelationByRecord:
			add(c.CorrType)
		case *RelationBySubgraph:
			add(c.CorrType)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultCorrType)
	}
	return out
}

// EventLabel returns the event label used by the type's constructors.
func (t *EntityType) EventLabel() string {
	for _, c := range t.Constructors {
		var l string
		switch c := c.(type) {
		case *NodeByRecord:
			l = c.EventLabel
		case *NodeBySubgraph:
			l = c.EventLabel
		case *RelationByRecord:
			l = c.EventLabel
		case *RelationBySubgraph:
			l = c.EventLabel
		}
		if l != "" {
			return l
		}
	}
	return DefaultEventLabel
}

// IdentifierKeys returns the attributes that identify an instance of the
// type. An empty result means instances carry a store-generated surrogate id.
func (t *EntityType) IdentifierKeys() []string {
	for _, c := range t.Constructors {
		switch c := c.(type) {
		case *NodeByRecord:
			return c.Result.Identifiers()
		case *NodeBySubgraph:
			return c.Result.Identifiers()
		}
	}
	return nil
}

// SurrogateID reports whether instances are identified by a store-generated id.
func (t *EntityType) SurrogateID() bool {
	return len(t.IdentifierKeys()) == 0
}

// Schema is an immutable, validated schema.
type Schema struct {
	name      string
	version   string
	records   []pattern.RecordNode
	nodes     []*EntityType
	relations []*EntityType
	byName    map[string]*EntityType
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Version returns the schema version.
func (s *Schema) Version() string { return s.version }

// Records returns the record declarations.
func (s *Schema) Records() []pattern.RecordNode {
	return append([]pattern.RecordNode(nil), s.records...)
}

// NodeTypes returns the node types in declaration order.
func (s *Schema) NodeTypes() []*EntityType {
	return append([]*EntityType(nil), s.nodes...)
}

// RelationTypes returns the relation types in declaration order.
func (s *Schema) RelationTypes() []*EntityType {
	return append([]*EntityType(nil), s.relations...)
}

// Type looks up a node or relation type by name.
func (s *Schema) Type(name string) (*EntityType, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// RecordDeclaration returns the first record declaration whose record types
// include every one of types.
func (s *Schema) RecordDeclaration(types []string) (pattern.RecordNode, bool) {
	for _, r := range s.records {
		if containsAll(r.RecordTypes, types) {
			return r, true
		}
	}
	return pattern.RecordNode{}, false
}

// NodeByRecordConstructors enumerates by-record node constructors of the
// selected types. A nil filter selects every type.
func (s *Schema) NodeByRecordConstructors(types []string) []*NodeByRecord {
	var out []*NodeByRecord
	for _, t := range selectTypes(s.nodes, types) {
		for _, c := range t.Constructors {
			if c, ok := c.(*NodeByRecord); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// NodeBySubgraphConstructors enumerates node constructors that reify
// existing relationships.
func (s *Schema) NodeBySubgraphConstructors(types []string) []*NodeBySubgraph {
	var out []*NodeBySubgraph
	for _, t := range selectTypes(s.nodes, types) {
		for _, c := range t.Constructors {
			if c, ok := c.(*NodeBySubgraph); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// RelationByRecordConstructors enumerates by-record relation constructors.
func (s *Schema) RelationByRecordConstructors(types []string) []*RelationByRecord {
	var out []*RelationByRecord
	for _, t := range selectTypes(s.relations, types) {
		for _, c := range t.Constructors {
			if c, ok := c.(*RelationByRecord); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// RelationBySubgraphConstructors enumerates relation constructors that
// derive from existing nodes and relationships.
func (s *Schema) RelationBySubgraphConstructors(types []string) []*RelationBySubgraph {
	var out []*RelationBySubgraph
	for _, t := range selectTypes(s.relations, types) {
		for _, c := range t.Constructors {
			if c, ok := c.(*RelationBySubgraph); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// InferenceConstructors enumerates hook-based constructors of the given kind.
func (s *Schema) InferenceConstructors(kind Kind, types []string) []*ByInference {
	source := s.nodes
	if kind == KindRelation {
		source = s.relations
	}
	var out []*ByInference
	for _, t := range selectTypes(source, types) {
		for _, c := range t.Constructors {
			if c, ok := c.(*ByInference); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// DFTypes returns the node types, then the relation types modeled as nodes,
// with directly-follows inference enabled.
func (s *Schema) DFTypes(types []string) []*EntityType {
	var out []*EntityType
	for _, t := range selectTypes(s.nodes, types) {
		if t.InferDF {
			out = append(out, t)
		}
	}
	for _, t := range selectTypes(s.relations, types) {
		if t.InferDF && t.ModelAsNode {
			out = append(out, t)
		}
	}
	return out
}

func selectTypes(all []*EntityType, filter []string) []*EntityType {
	if filter == nil {
		return all
	}
	want := make(map[string]bool, len(filter))
	for _, f := range filter {
		want[f] = true
	}
	var out []*EntityType
	for _, t := range all {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

func containsAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
