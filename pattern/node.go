package pattern

import (
	"fmt"
	"strings"
)

// Node is a parsed node pattern.
type Node struct {
	// Name is the local alias; empty for anonymous nodes
	Name string
	// Labels are kept in declaration order
	Labels     []string
	Properties []Property
	// Where is a free-form filter condition, used only without Properties
	Where string
	// Position addresses anonymous nodes within their enclosing pattern set
	Position int
}

// ParseNode parses a node pattern such as "(o:Order {id: record.orderId})".
func ParseNode(text string) (Node, error) {
	s := &scanner{src: text}
	n, err := parseNode(s, false)
	if err != nil {
		return Node{}, err
	}
	if err := s.end(); err != nil {
		return Node{}, err
	}
	return n, nil
}

// MustParseNode is like ParseNode but panics on error. Intended for fixed
// patterns in code and tests.
func MustParseNode(text string) Node {
	n, err := ParseNode(text)
	if err != nil {
		panic(err)
	}
	return n
}

func (s *scanner) end() error {
	s.skipSpace()
	if !s.eof() {
		return s.errorf("unexpected trailing input")
	}
	return nil
}

// parseNode reads one parenthesized node. In record mode a trailing
// attribute list may follow a WHERE condition.
func parseNode(s *scanner, record bool) (Node, error) {
	var n Node
	if err := s.expect('(', "expected '('"); err != nil {
		return n, err
	}
	s.skipSpace()
	n.Name = s.ident()
	for {
		s.skipSpace()
		if !s.consume(':') {
			break
		}
		s.skipSpace()
		label := s.ident()
		if label == "" {
			return n, s.errorf("expected label after ':'")
		}
		n.Labels = append(n.Labels, label)
	}
	s.skipSpace()

	switch {
	case s.keyword("WHERE"):
		start := s.pos
		cond, err := s.until(')')
		if err != nil {
			return n, err
		}
		cond, block, err := splitTrailingBlock(cond)
		if err != nil {
			return n, s.errorAt(start, err.Error())
		}
		if block != "" && !record {
			return n, s.errorAt(start, "property map and WHERE condition are mutually exclusive")
		}
		if cond == "" {
			return n, s.errorAt(start, "empty WHERE condition")
		}
		n.Where = cond
		if block != "" {
			if n.Properties, err = parseProperties(block, false); err != nil {
				return n, err
			}
		}
	case s.peek() == '{':
		inner, err := s.balanced()
		if err != nil {
			return n, err
		}
		if n.Properties, err = parseProperties(inner, !record); err != nil {
			return n, err
		}
		s.skipSpace()
		if s.keyword("WHERE") {
			return n, s.errorf("property map and WHERE condition are mutually exclusive")
		}
	}

	if err := s.expect(')', "expected ')'"); err != nil {
		return n, err
	}
	return n, nil
}

// splitTrailingBlock separates a condition from a trailing "{...}" block.
// Blocks that belong to EXISTS, COUNT or COLLECT subqueries stay part of
// the condition.
func splitTrailingBlock(cond string) (string, string, error) {
	cond = strings.TrimSpace(cond)
	if !strings.HasSuffix(cond, "}") {
		return cond, "", nil
	}
	open := -1
	for i := 0; i < len(cond); {
		c := cond[i]
		switch {
		case c == '\'' || c == '"':
			_, end, _ := scanQuoted(cond, i)
			i = end
			continue
		case closers[c] != 0:
			end, ok := matchBracket(cond, i)
			if !ok {
				return "", "", fmt.Errorf("unbalanced %c", c)
			}
			if c == '{' && end == len(cond)-1 {
				open = i
			}
			i = end + 1
			continue
		}
		i++
	}
	if open < 0 {
		return cond, "", nil
	}
	head := strings.TrimSpace(cond[:open])
	upper := strings.ToUpper(head)
	for _, kw := range []string{"EXISTS", "COUNT", "COLLECT"} {
		if strings.HasSuffix(upper, kw) {
			return cond, "", nil
		}
	}
	return head, cond[open+1 : len(cond)-1], nil
}

// Alias returns the name used to address the node in a query. Anonymous
// nodes are addressed by position.
func (n Node) Alias() string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("_n%d", n.Position)
}

// Anonymous reports whether the node was written without a name.
func (n Node) Anonymous() bool {
	return n.Name == ""
}

// WithPosition returns a copy addressed at position p.
func (n Node) WithPosition(p int) Node {
	n.Position = p
	return n
}

// WithName returns a copy with the given alias.
func (n Node) WithName(name string) Node {
	n.Name = name
	return n
}

// HasLabel reports whether label is among the node's labels.
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Required returns the properties that take part in matching.
func (n Node) Required() []Property {
	var out []Property
	for _, p := range n.Properties {
		if !p.Optional {
			out = append(out, p)
		}
	}
	return out
}

// Optional returns the set-if-absent properties.
func (n Node) Optional() []Property {
	var out []Property
	for _, p := range n.Properties {
		if p.Optional {
			out = append(out, p)
		}
	}
	return out
}

// Identifiers returns the attributes marked IDENTIFIER. When none are marked
// every required property is part of the identifier.
func (n Node) Identifiers() []string {
	var ids, req []string
	for _, p := range n.Properties {
		if p.Identifier {
			ids = append(ids, p.Attribute)
		}
		if !p.Optional {
			req = append(req, p.Attribute)
		}
	}
	if len(ids) > 0 {
		return ids
	}
	return req
}

// References returns the names of other nodes that property values and the
// WHERE condition depend on, in first-seen order.
func (n Node) References() []string {
	var (
		out  []string
		seen = map[string]bool{n.Alias(): true}
	)
	add := func(names []string) {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	for _, p := range n.Properties {
		add(p.Value.References())
	}
	if n.Where != "" {
		add(embeddedReferences(n.Where))
	}
	return out
}

// String renders the node in pattern syntax.
func (n Node) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(n.Name)
	for _, l := range n.Labels {
		b.WriteByte(':')
		b.WriteString(l)
	}
	switch {
	case len(n.Properties) > 0:
		b.WriteByte(' ')
		b.WriteString(renderProperties(n.Properties))
	case n.Where != "":
		b.WriteString(" WHERE ")
		b.WriteString(n.Where)
	}
	b.WriteByte(')')
	return b.String()
}
