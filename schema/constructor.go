package schema

import (
	"fmt"

	"github.com/zero-day-ai/ekg/pattern"
)

// Kind distinguishes node types from relation types.
type Kind int

const (
	// KindNode types materialize as graph nodes
	KindNode Kind = iota
	// KindRelation types materialize as relationships, or as nodes when
	// modeled as nodes
	KindRelation
)

// String returns "node" or "relation".
func (k Kind) String() string {
	if k == KindRelation {
		return "relation"
	}
	return "node"
}

// Constructor is a rule that populates an entity type. The set of
// implementations is closed.
type Constructor interface {
	// ID identifies the constructor as "Type#index"
	ID() string
	// Owner returns the name of the type the constructor populates
	Owner() string
	// OwnerKind returns the kind of the owning type
	OwnerKind() Kind
	// Method names the production method ("record", "subgraph" or "inference")
	Method() string

	sealed()
}

type base struct {
	owner string
	kind  Kind
	index int
}

func (b base) ID() string { return fmt.Sprintf("%s#%d", b.owner, b.index) }
func (b base) Owner() string { return b.owner }
func (b base) OwnerKind() Kind { return b.kind }
func (base) sealed() {}

// InferredRelationship links the result of a by-record constructor to events
// that share a source record of the given types.
type InferredRelationship struct {
	RecordTypes  []string
	RelationType string
	// Event is the event pattern, named "event" unless given otherwise
	Event pattern.Node
}

// NodeByRecord creates one result node per matching record.
type NodeByRecord struct {
	base
	Record    pattern.RecordNode
	Result    pattern.Node
	SetLabels []string

	InferObserved             bool
	InferCorrFromEventRecord  bool
	InferCorrFromEntityRecord bool
	InferredRelationships     []InferredRelationship

	EventLabel string
	CorrType   string
}

func (*NodeByRecord) Method() string { return "record" }

// NodeBySubgraph creates a node from an existing relationship pattern,
// typically reifying the relationship.
type NodeBySubgraph struct {
	base
	Relation  pattern.Relationship
	Result    pattern.Node
	SetLabels []string

	// InferReifiedRelation links the result to both endpoints with REIFIED edges
	InferReifiedRelation        bool
	InferCorrFromReifiedParents bool

	EventLabel string
	CorrType   string
}

func (*NodeBySubgraph) Method() string { return "subgraph" }

// RelationByRecord creates a relationship between two nodes that share a
// source record.
type RelationByRecord struct {
	base
	Record             pattern.RecordNode
	From               pattern.Node
	To                 pattern.Node
	Result             pattern.Relationship
	OptionalProperties []pattern.Property

	ModelAsNode                 bool
	InferCorrFromReifiedParents bool
	EventLabel                  string
	CorrType                    string
}

func (*RelationByRecord) Method() string { return "record" }

// RelationBySubgraph creates a relationship from an existing pattern of nodes
// and relationships.
type RelationBySubgraph struct {
	base
	Nodes              []pattern.Node
	Relations          []pattern.Relationship
	From               pattern.Node
	To                 pattern.Node
	Result             pattern.Relationship
	OptionalProperties []pattern.Property

	ModelAsNode                 bool
	InferCorrFromReifiedParents bool
	EventLabel                  string
	CorrType                    string
}

func (*RelationBySubgraph) Method() string { return "subgraph" }

// ByInference delegates to an externally registered hook.
type ByInference struct {
	base
	Hook   string
	Params map[string]any
}

func (*ByInference) Method() string { return "inference" }

// ResultLabels returns the labels a node constructor's result carries,
// including extra labels set after creation.
func (c *NodeByRecord) ResultLabels() []string {
	return append(append([]string(nil), c.Result.Labels...), c.SetLabels...)
}

// ResultLabels returns the labels of the reified node.
func (c *NodeBySubgraph) ResultLabels() []string {
	return append(append([]string(nil), c.Result.Labels...), c.SetLabels...)
}
