package pattern

import (
	"regexp"
	"strings"
)

// ValueKind identifies how a property value is expressed.
type ValueKind int

const (
	// ValueNone means no value was given (record attribute lists)
	ValueNone ValueKind = iota
	// ValueLiteral is a string, number, boolean or null literal
	ValueLiteral
	// ValueReference is a reference to another node's attribute (node.attr)
	ValueReference
	// ValueParameter is a runtime parameter placeholder ($name)
	ValueParameter
	// ValueExpression is any other expression, kept verbatim
	ValueExpression
)

// String returns the kind name for debugging.
func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueLiteral:
		return "literal"
	case ValueReference:
		return "reference"
	case ValueParameter:
		return "parameter"
	case ValueExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Value is a property value expression.
type Value struct {
	Kind ValueKind
	// Text is the value as written
	Text string
	// Node and Attribute are set for references
	Node      string
	Attribute string
	// Param is set for parameters, without the leading $
	Param string
}

var (
	identRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	referenceRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)$`)
	numberRe    = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)
	embeddedRe  = regexp.MustCompile(`(?:^|[^A-Za-z0-9_$.])([A-Za-z_][A-Za-z0-9_]*)\.[A-Za-z_][A-Za-z0-9_]*`)
)

// IsIdentifier reports whether s is a plain identifier usable as a name,
// label, relationship type or attribute without quoting.
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// ParseValue classifies a value expression.
func ParseValue(text string) Value {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return Value{Kind: ValueNone}
	case strings.HasPrefix(text, "$") && IsIdentifier(text[1:]):
		return Value{Kind: ValueParameter, Text: text, Param: text[1:]}
	case isQuoted(text), numberRe.MatchString(text):
		return Value{Kind: ValueLiteral, Text: text}
	}
	switch strings.ToLower(text) {
	case "true", "false", "null":
		return Value{Kind: ValueLiteral, Text: text}
	}
	if m := referenceRe.FindStringSubmatch(text); m != nil {
		return Value{Kind: ValueReference, Text: text, Node: m[1], Attribute: m[2]}
	}
	return Value{Kind: ValueExpression, Text: text}
}

// Ref builds a reference value node.attr.
func Ref(node, attribute string) Value {
	return Value{Kind: ValueReference, Text: node + "." + attribute, Node: node, Attribute: attribute}
}

// String renders the value as written.
func (v Value) String() string {
	return v.Text
}

// References returns the node names this value depends on. Expressions are
// scanned for embedded name.attr references outside string literals.
func (v Value) References() []string {
	switch v.Kind {
	case ValueReference:
		return []string{v.Node}
	case ValueExpression:
		return embeddedReferences(v.Text)
	default:
		return nil
	}
}

// embeddedReferences finds name.attr occurrences outside quoted strings.
func embeddedReferences(text string) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	for _, m := range embeddedRe.FindAllStringSubmatch(stripQuoted(text), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return false
	}
	_, end, ok := scanQuoted(s, 0)
	return ok && end == len(s)
}

// stripQuoted blanks the contents of quoted strings so that scanning for
// identifiers does not see literal text.
func stripQuoted(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '\'' || s[i] == '"' {
			_, end, ok := scanQuoted(s, i)
			if !ok {
				end = len(s)
			}
			b.WriteString(`""`)
			i = end
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}
