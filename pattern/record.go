package pattern

import "strings"

const (
	// RecordLabel is carried by every imported record node
	RecordLabel = "Record"
	// DefaultRecordName is the alias used when a record pattern has no name
	DefaultRecordName = "record"
)

// RecordNode is a record pattern. Its Labels hold only the implicit Record
// label; the record-type tags are kept separately in RecordTypes.
type RecordNode struct {
	Node
	// RecordTypes select which imported records the pattern applies to
	RecordTypes []string
}

// ParseRecord parses "(record:TypeA:TypeB WHERE cond {attr, OPTIONAL other})".
// An explicit Record label is accepted and dropped from RecordTypes.
func ParseRecord(text string) (RecordNode, error) {
	s := &scanner{src: text}
	n, err := parseNode(s, true)
	if err != nil {
		return RecordNode{}, err
	}
	if err := s.end(); err != nil {
		return RecordNode{}, err
	}
	return newRecordNode(n), nil
}

// MustParseRecord is like ParseRecord but panics on error.
func MustParseRecord(text string) RecordNode {
	r, err := ParseRecord(text)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRecord builds a record pattern from its parts.
func NewRecord(name string, recordTypes []string, where string, required, optional []string) RecordNode {
	n := Node{Name: name, Where: where}
	for _, a := range required {
		n.Properties = append(n.Properties, Property{Attribute: a})
	}
	for _, a := range optional {
		n.Properties = append(n.Properties, Property{Attribute: a, Optional: true})
	}
	n.Labels = append([]string{RecordLabel}, recordTypes...)
	return newRecordNode(n)
}

func newRecordNode(n Node) RecordNode {
	if n.Name == "" {
		n.Name = DefaultRecordName
	}
	var types []string
	for _, l := range n.Labels {
		if l != RecordLabel {
			types = append(types, l)
		}
	}
	n.Labels = []string{RecordLabel}
	return RecordNode{Node: n, RecordTypes: types}
}

// AllLabels returns Record followed by the record types, the label set a
// matching record node carries.
func (r RecordNode) AllLabels() []string {
	return append([]string{RecordLabel}, r.RecordTypes...)
}

// RequiredAttributes lists attributes that must be present on the record.
func (r RecordNode) RequiredAttributes() []string {
	var out []string
	for _, p := range r.Required() {
		out = append(out, p.Attribute)
	}
	return out
}

// OptionalAttributes lists attributes that may be absent.
func (r RecordNode) OptionalAttributes() []string {
	var out []string
	for _, p := range r.Optional() {
		out = append(out, p.Attribute)
	}
	return out
}

// String renders the record pattern. The implicit Record label is omitted.
func (r RecordNode) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(r.Name)
	for _, t := range r.RecordTypes {
		b.WriteByte(':')
		b.WriteString(t)
	}
	if r.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(r.Where)
	}
	if len(r.Properties) > 0 {
		b.WriteByte(' ')
		b.WriteString(renderProperties(r.Properties))
	}
	b.WriteByte(')')
	return b.String()
}
