package pattern

import (
	"regexp"
	"strings"
)

// Renamer maps an attribute name to its replacement. It returns the input
// unchanged for attributes it does not cover.
type Renamer func(attribute string) string

var dottedRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)`)

// renameText rewrites alias.attr occurrences outside string literals.
func renameText(text string, rename Renamer) string {
	var b strings.Builder
	last := 0
	for i := 0; i < len(text); {
		if text[i] == '\'' || text[i] == '"' {
			_, end, _ := scanQuoted(text, i)
			b.WriteString(rewriteDotted(text[last:i], rename))
			b.WriteString(text[i:end])
			last, i = end, end
			continue
		}
		i++
	}
	b.WriteString(rewriteDotted(text[last:], rename))
	return b.String()
}

func rewriteDotted(s string, rename Renamer) string {
	return dottedRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := dottedRe.FindStringSubmatch(m)
		return parts[1] + "." + rename(parts[2])
	})
}

func (v Value) rename(rename Renamer) Value {
	switch v.Kind {
	case ValueReference:
		return Ref(v.Node, rename(v.Attribute))
	case ValueExpression:
		v.Text = renameText(v.Text, rename)
	}
	return v
}

func renameProperties(props []Property, rename Renamer) []Property {
	if props == nil {
		return nil
	}
	out := make([]Property, len(props))
	for i, p := range props {
		p.Attribute = rename(p.Attribute)
		p.Value = p.Value.rename(rename)
		out[i] = p
	}
	return out
}

// Rename returns a copy with attribute names rewritten. The receiver and its
// slices are left untouched.
func (n Node) Rename(rename Renamer) Node {
	out := n
	out.Labels = append([]string(nil), n.Labels...)
	out.Properties = renameProperties(n.Properties, rename)
	if n.Where != "" {
		out.Where = renameText(n.Where, rename)
	}
	return out
}

// Rename returns a copy of the relationship with attribute names rewritten.
func (r Relationship) Rename(rename Renamer) Relationship {
	out := r
	out.Types = append([]string(nil), r.Types...)
	out.From = r.From.Rename(rename)
	out.To = r.To.Rename(rename)
	out.Properties = renameProperties(r.Properties, rename)
	return out
}

// Rename returns a copy of the record pattern with attribute names rewritten.
func (r RecordNode) Rename(rename Renamer) RecordNode {
	return RecordNode{
		Node:        r.Node.Rename(rename),
		RecordTypes: append([]string(nil), r.RecordTypes...),
	}
}
