package pattern

import (
	"strings"

	"github.com/zero-day-ai/ekg/ekgerr"
)

// Property is a single attribute constraint or assignment.
type Property struct {
	Attribute string
	Value     Value
	// Optional properties are set-if-absent and never take part in matching
	Optional bool
	// Identifier marks the attribute as part of the type's identifier key
	Identifier bool
}

// String renders the property in pattern syntax.
func (p Property) String() string {
	var b strings.Builder
	if p.Optional {
		b.WriteString("OPTIONAL ")
	}
	if p.Identifier {
		b.WriteString("IDENTIFIER ")
	}
	b.WriteString(p.Attribute)
	if p.Value.Kind != ValueNone {
		b.WriteString(": ")
		b.WriteString(p.Value.Text)
	}
	return b.String()
}

// ParseProperty parses "[OPTIONAL] [IDENTIFIER] attr: value". The separator
// may also be "=".
func ParseProperty(text string) (Property, error) {
	return parseProperty(text, true)
}

func parseProperty(text string, needValue bool) (Property, error) {
	s := &scanner{src: text}
	var p Property
	for {
		s.skipSpace()
		switch {
		case s.keyword("OPTIONAL"):
			p.Optional = true
			continue
		case s.keyword("IDENTIFIER"):
			p.Identifier = true
			continue
		}
		break
	}
	p.Attribute = s.ident()
	if p.Attribute == "" {
		return Property{}, s.errorf("expected attribute name")
	}
	s.skipSpace()
	if s.eof() {
		if needValue {
			return Property{}, s.errorf("expected ':' and a value after " + p.Attribute)
		}
		return p, nil
	}
	if !needValue {
		return Property{}, s.errorf("attribute lists take names only")
	}
	if !s.consume(':') && !s.consume('=') {
		return Property{}, s.errorf("expected ':' or '='")
	}
	p.Value = ParseValue(s.src[s.pos:])
	if p.Value.Kind == ValueNone {
		return Property{}, s.errorf("missing value for " + p.Attribute)
	}
	if p.Value.Kind == ValueExpression {
		if err := checkBalanced(p.Value.Text); err != nil {
			return Property{}, err
		}
	}
	return p, nil
}

func parseProperties(inner string, needValue bool) ([]Property, error) {
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}
	var props []Property
	seen := map[string]bool{}
	for _, item := range splitTopLevel(inner, ',') {
		p, err := parseProperty(item, needValue)
		if err != nil {
			return nil, err
		}
		if seen[p.Attribute] {
			return nil, &ekgerr.MalformedPatternError{Fragment: strings.TrimSpace(item), Pattern: inner, Reason: "duplicate attribute"}
		}
		seen[p.Attribute] = true
		props = append(props, p)
	}
	return props, nil
}

func renderProperties(props []Property) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = p.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParseProperties parses a comma-separated property list without braces.
func ParseProperties(text string) ([]Property, error) {
	return parseProperties(text, true)
}
