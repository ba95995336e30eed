package pattern

import "strings"

// Direction records how a relationship was written.
type Direction int

const (
	// Undirected is written (a)-[:T]-(b)
	Undirected Direction = iota
	// LeftToRight is written (a)-[:T]->(b)
	LeftToRight
	// RightToLeft is written (a)<-[:T]-(b)
	RightToLeft
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case LeftToRight:
		return "left-to-right"
	case RightToLeft:
		return "right-to-left"
	default:
		return "undirected"
	}
}

// Relationship is a parsed relationship pattern. From and To are the
// semantic endpoints: for RightToLeft patterns From is the right-hand node.
type Relationship struct {
	Name string
	// Types has at least one entry; the first is the primary type
	Types      []string
	From       Node
	To         Node
	Direction  Direction
	Properties []Property
}

// ParseRelationship parses a pattern such as "(a:Order)-[r:PLACED_BY]->(b:Customer)".
func ParseRelationship(text string) (Relationship, error) {
	s := &scanner{src: text}
	var r Relationship

	left, err := parseNode(s, false)
	if err != nil {
		return r, err
	}
	left = left.WithPosition(0)

	s.skipSpace()
	leftArrow := s.consume('<')
	if err := s.expect('-', "expected '-' or '<-'"); err != nil {
		return r, err
	}
	s.skipSpace()
	if s.peek() != '[' {
		return r, s.errorf("expected '['")
	}
	bodyStart := s.pos
	body, err := s.balanced()
	if err != nil {
		return r, err
	}
	if err := parseRelationshipBody(&r, body, s, bodyStart); err != nil {
		return r, err
	}

	if err := s.expect('-', "expected '-' or '->'"); err != nil {
		return r, err
	}
	rightArrow := s.consume('>')

	right, err := parseNode(s, false)
	if err != nil {
		return r, err
	}
	right = right.WithPosition(1)
	if err := s.end(); err != nil {
		return r, err
	}

	switch {
	case leftArrow && rightArrow:
		return r, s.errorAt(bodyStart, "relationship cannot point both ways")
	case rightArrow:
		r.Direction, r.From, r.To = LeftToRight, left, right
	case leftArrow:
		r.Direction, r.From, r.To = RightToLeft, right, left
	default:
		r.Direction, r.From, r.To = Undirected, left, right
	}
	return r, nil
}

// MustParseRelationship is like ParseRelationship but panics on error.
func MustParseRelationship(text string) Relationship {
	r, err := ParseRelationship(text)
	if err != nil {
		panic(err)
	}
	return r
}

func parseRelationshipBody(r *Relationship, body string, outer *scanner, offset int) error {
	s := &scanner{src: body}
	s.skipSpace()
	r.Name = s.ident()
	for {
		s.skipSpace()
		if !s.consume(':') {
			break
		}
		s.skipSpace()
		t := s.ident()
		if t == "" {
			return outer.errorAt(offset, "expected relationship type after ':'")
		}
		r.Types = append(r.Types, t)
	}
	if len(r.Types) == 0 {
		return outer.errorAt(offset, "relationship needs at least one type")
	}
	if s.peek() == '{' {
		inner, err := s.balanced()
		if err != nil {
			return outer.errorAt(offset, "unbalanced property map")
		}
		if r.Properties, err = parseProperties(inner, true); err != nil {
			return err
		}
	}
	if err := s.end(); err != nil {
		return outer.errorAt(offset, "unexpected input in relationship body")
	}
	return nil
}

// PrimaryType returns the first declared type.
func (r Relationship) PrimaryType() string {
	return r.Types[0]
}

// FromName returns the alias of the source endpoint.
func (r Relationship) FromName() string { return r.From.Alias() }

// ToName returns the alias of the target endpoint.
func (r Relationship) ToName() string { return r.To.Alias() }

// FromLabels returns the labels of the source endpoint.
func (r Relationship) FromLabels() []string { return r.From.Labels }

// ToLabels returns the labels of the target endpoint.
func (r Relationship) ToLabels() []string { return r.To.Labels }

// Alias returns the relationship's name, or "rel" when anonymous.
func (r Relationship) Alias() string {
	if r.Name != "" {
		return r.Name
	}
	return "rel"
}

// Directed reports whether the relationship has a direction.
func (r Relationship) Directed() bool {
	return r.Direction != Undirected
}

// Body renders the bracketed part, e.g. "[r:T1:T2 {a: 1}]".
func (r Relationship) Body() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(r.Name)
	for _, t := range r.Types {
		b.WriteByte(':')
		b.WriteString(t)
	}
	if len(r.Properties) > 0 {
		b.WriteByte(' ')
		b.WriteString(renderProperties(r.Properties))
	}
	b.WriteByte(']')
	return b.String()
}

// String renders the relationship in the direction it was written.
func (r Relationship) String() string {
	switch r.Direction {
	case LeftToRight:
		return r.From.String() + "-" + r.Body() + "->" + r.To.String()
	case RightToLeft:
		return r.To.String() + "<-" + r.Body() + "-" + r.From.String()
	default:
		return r.From.String() + "-" + r.Body() + "-" + r.To.String()
	}
}
