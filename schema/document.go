package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the declarative form of a schema as read from YAML.
type Document struct {
	Name      string      `yaml:"name"`
	Version   string      `yaml:"version"`
	Records   []RecordDoc `yaml:"records"`
	Nodes     []TypeDoc   `yaml:"nodes"`
	Relations []TypeDoc   `yaml:"relations"`
}

// RecordDoc declares a record shape. It may be written as a single record
// pattern string or as a mapping.
type RecordDoc struct {
	// Pattern is the string form, e.g. "(record:OrderRecord {orderId, OPTIONAL note})"
	Pattern string `yaml:"-"`

	RecordLabels       string   `yaml:"record_labels"`
	RequiredAttributes []string `yaml:"required_attributes"`
	OptionalAttributes []string `yaml:"optional_attributes"`
	Where              string   `yaml:"where"`
}

// UnmarshalYAML accepts either a scalar pattern or a mapping.
func (r *RecordDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Pattern = node.Value
		return nil
	}
	type plain RecordDoc
	return node.Decode((*plain)(r))
}

// MarshalYAML writes the pattern form when set.
func (r RecordDoc) MarshalYAML() (any, error) {
	if r.Pattern != "" {
		return r.Pattern, nil
	}
	type plain RecordDoc
	return plain(r), nil
}

// TypeDoc declares a node type or a relation type.
type TypeDoc struct {
	Type    string `yaml:"type"`
	Include *bool  `yaml:"include,omitempty"`

	Constructors []ConstructorDoc `yaml:"constructor"`

	InferDF          bool `yaml:"infer_df,omitempty"`
	IncludeLabelInDF bool `yaml:"include_label_in_df,omitempty"`
	MergeDuplicateDF bool `yaml:"merge_duplicate_df,omitempty"`
	DeleteParallelDF bool `yaml:"delete_parallel_df,omitempty"`

	// ModelAsNode on a relation type materializes results as nodes; on a
	// node type it permits constructors that reify relationships
	ModelAsNode bool `yaml:"model_as_node,omitempty"`

	// EventLike and AttributeLike override label-based detection
	EventLike     *bool `yaml:"event_like,omitempty"`
	AttributeLike *bool `yaml:"attribute_like,omitempty"`
}

// ConstructorDoc is one constructor entry. Exactly one production method
// must be present: prevalent_record, relation (node types),
// nodes/relations (relation types) or inference.
type ConstructorDoc struct {
	PrevalentRecord string         `yaml:"prevalent_record,omitempty"`
	Relation        string         `yaml:"relation,omitempty"`
	Nodes           []string       `yaml:"nodes,omitempty"`
	Relations       []string       `yaml:"relations,omitempty"`
	Inference       string         `yaml:"inference,omitempty"`
	InferenceParams map[string]any `yaml:"inference_params,omitempty"`

	Result    string `yaml:"result,omitempty"`
	FromNode  string `yaml:"from_node,omitempty"`
	ToNode    string `yaml:"to_node,omitempty"`
	SetLabels string `yaml:"set_labels,omitempty"`

	SetOptionalProperties string `yaml:"set_optional_properties,omitempty"`

	InferObserved               bool `yaml:"infer_observed,omitempty"`
	InferCorrFromEventRecord    bool `yaml:"infer_corr_from_event_record,omitempty"`
	InferCorrFromEntityRecord   bool `yaml:"infer_corr_from_entity_record,omitempty"`
	InferCorrFromReifiedParents bool `yaml:"infer_corr_from_reified_parents,omitempty"`
	InferReifiedRelation        bool `yaml:"infer_reified_relation,omitempty"`

	InferredRelationships []InferredRelationshipDoc `yaml:"inferred_relationships,omitempty"`

	CorrType   string `yaml:"corr_type,omitempty"`
	EventLabel string `yaml:"event_label,omitempty"`
}

// InferredRelationshipDoc declares an extra correlation edge for a by-record
// node constructor.
type InferredRelationshipDoc struct {
	RecordLabels string `yaml:"record_labels"`
	RelationType string `yaml:"relation_type"`
	Event        string `yaml:"event"`
}

// ReadDocument reads and decodes a YAML schema document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return DecodeDocument(data)
}

// DecodeDocument decodes YAML bytes into a Document. Unknown keys are
// rejected so that misspelled flags do not silently default to false.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	return &doc, nil
}

// splitLabels splits "A:B" or "A, B" into labels.
func splitLabels(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ',' || r == ' ' })
}
