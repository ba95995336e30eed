package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/ekgerr"
)

func TestParseNode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Node
	}{
		{
			name:  "labels and properties",
			input: "(o:Order:Entity {id: record.orderId, OPTIONAL name: record.name})",
			want: Node{
				Name:   "o",
				Labels: []string{"Order", "Entity"},
				Properties: []Property{
					{Attribute: "id", Value: Ref("record", "orderId")},
					{Attribute: "name", Value: Ref("record", "name"), Optional: true},
				},
			},
		},
		{
			name:  "where condition",
			input: "(e:Event WHERE e.activity = 'Pay')",
			want:  Node{Name: "e", Labels: []string{"Event"}, Where: "e.activity = 'Pay'"},
		},
		{
			name:  "where with exists subquery",
			input: "(e:Event WHERE EXISTS { (e)-[:CORR]->(:Order) })",
			want:  Node{Name: "e", Labels: []string{"Event"}, Where: "EXISTS { (e)-[:CORR]->(:Order) }"},
		},
		{
			name:  "anonymous",
			input: "(:Order)",
			want:  Node{Labels: []string{"Order"}},
		},
		{
			name:  "no labels",
			input: "( n )",
			want:  Node{Name: "n"},
		},
		{
			name:  "identifier and equals separator",
			input: "(c:Customer {IDENTIFIER code = record.customer, region: 'EU'})",
			want: Node{
				Name:   "c",
				Labels: []string{"Customer"},
				Properties: []Property{
					{Attribute: "code", Value: Ref("record", "customer"), Identifier: true},
					{Attribute: "region", Value: Value{Kind: ValueLiteral, Text: "'EU'"}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"where after properties", "(o:Order {id: 1} WHERE o.x = 1)"},
		{"properties after where", "(o:Order WHERE o.x = 1 {id: 1})"},
		{"empty label", "(o:)"},
		{"missing parens", "o:Order"},
		{"unclosed", "(o:Order"},
		{"property without value", "(o:Order {id})"},
		{"duplicate attribute", "(o:Order {id: 1, id: 2})"},
		{"trailing input", "(o:Order) extra"},
		{"empty where", "(o:Order WHERE )"},
		{"unbalanced expression", "(o:Order {id: toString(record.x})"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNode(tt.input)
			require.Error(t, err)
			var mp *ekgerr.MalformedPatternError
			require.True(t, errors.As(err, &mp), "got %T", err)
			assert.NotEmpty(t, mp.Fragment)
			assert.Equal(t, ekgerr.ErrorClassSemantic, ekgerr.ClassOf(err))
		})
	}
}

func TestNode_Accessors(t *testing.T) {
	n := MustParseNode("(o:Order {IDENTIFIER id: record.orderId, total: toFloat(record.amount), OPTIONAL note: record.note})")

	assert.Equal(t, []string{"id"}, n.Identifiers())
	assert.Len(t, n.Required(), 2)
	assert.Len(t, n.Optional(), 1)
	assert.Equal(t, []string{"record"}, n.References())
	assert.True(t, n.HasLabel("Order"))
	assert.False(t, n.HasLabel("Event"))

	anon := MustParseNode("(:Order)").WithPosition(3)
	assert.True(t, anon.Anonymous())
	assert.Equal(t, "_n3", anon.Alias())

	plain := MustParseNode("(c:Customer {code: record.customer, region: record.region})")
	assert.Equal(t, []string{"code", "region"}, plain.Identifiers())
}

func TestParseRelationship(t *testing.T) {
	t.Run("left to right with properties", func(t *testing.T) {
		r, err := ParseRelationship("(a:Order)-[r:PLACED_BY:LINKED {since: $since}]->(b:Customer)")
		require.NoError(t, err)
		assert.Equal(t, "r", r.Name)
		assert.Equal(t, []string{"PLACED_BY", "LINKED"}, r.Types)
		assert.Equal(t, "PLACED_BY", r.PrimaryType())
		assert.Equal(t, LeftToRight, r.Direction)
		assert.Equal(t, "a", r.FromName())
		assert.Equal(t, "b", r.ToName())
		assert.Equal(t, []string{"Order"}, r.FromLabels())
		assert.Equal(t, []string{"Customer"}, r.ToLabels())
		require.Len(t, r.Properties, 1)
		assert.Equal(t, ValueParameter, r.Properties[0].Value.Kind)
		assert.Equal(t, "since", r.Properties[0].Value.Param)
	})

	t.Run("right to left swaps endpoints", func(t *testing.T) {
		r, err := ParseRelationship("(c:Customer)<-[:PLACED_BY]-(o:Order)")
		require.NoError(t, err)
		assert.Equal(t, RightToLeft, r.Direction)
		assert.Equal(t, "o", r.FromName())
		assert.Equal(t, "c", r.ToName())
		assert.Equal(t, "rel", r.Alias())
	})

	t.Run("undirected with spacing", func(t *testing.T) {
		r, err := ParseRelationship("(a) - [:KNOWS] - (b)")
		require.NoError(t, err)
		assert.Equal(t, Undirected, r.Direction)
		assert.False(t, r.Directed())
		assert.Equal(t, "a", r.FromName())
	})

	t.Run("anonymous endpoints addressed by position", func(t *testing.T) {
		r, err := ParseRelationship("(:Order) - [:CORR] -> (:Customer)")
		require.NoError(t, err)
		assert.Equal(t, "_n0", r.FromName())
		assert.Equal(t, "_n1", r.ToName())
	})
}

func TestParseRelationship_Errors(t *testing.T) {
	inputs := map[string]string{
		"both arrows":     "(a)<-[:T]->(b)",
		"no type":         "(a)-[r]->(b)",
		"missing target":  "(a)-[:T]->",
		"missing bracket": "(a)-->(b)",
		"bad body":        "(a)-[:T junk]->(b)",
		"empty type":      "(a)-[:]->(b)",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRelationship(input)
			var mp *ekgerr.MalformedPatternError
			require.True(t, errors.As(err, &mp), "got %v", err)
		})
	}
}

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord("(record:OrderRecord WHERE record.total > 0 {orderId, OPTIONAL note})")
	require.NoError(t, err)
	assert.Equal(t, "record", r.Name)
	assert.Equal(t, []string{"OrderRecord"}, r.RecordTypes)
	assert.Equal(t, []string{"Record"}, r.Labels)
	assert.Equal(t, []string{"Record", "OrderRecord"}, r.AllLabels())
	assert.Equal(t, "record.total > 0", r.Where)
	assert.Equal(t, []string{"orderId"}, r.RequiredAttributes())
	assert.Equal(t, []string{"note"}, r.OptionalAttributes())

	anon, err := ParseRecord("(:Record:EventRecord)")
	require.NoError(t, err)
	assert.Equal(t, DefaultRecordName, anon.Name)
	assert.Equal(t, []string{"EventRecord"}, anon.RecordTypes)

	_, err = ParseRecord("(record:OrderRecord {orderId: 1})")
	assert.Error(t, err)

	built := NewRecord("", []string{"A", "B"}, "", []string{"x"}, []string{"y"})
	assert.Equal(t, "(record:A:B {x, OPTIONAL y})", built.String())
}

// Parsing the rendered form must give back an equal pattern.
func TestRoundTrip(t *testing.T) {
	nodes := []string{
		"(o:Order:Entity {id: record.orderId, OPTIONAL name: record.name})",
		"(e:Event WHERE e.activity = 'Pay' AND e.amount > 10)",
		"(:Order)",
		"(n)",
		"(c:Customer {IDENTIFIER code: record.customer, since: $since, total: toFloat(record.x)})",
	}
	for _, in := range nodes {
		t.Run(in, func(t *testing.T) {
			first := MustParseNode(in)
			second, err := ParseNode(first.String())
			require.NoError(t, err, first.String())
			assert.Equal(t, first, second)
		})
	}

	rels := []string{
		"(a:Order)-[r:PLACED_BY:LINKED {since: $since}]->(b:Customer)",
		"(c:Customer)<-[:PLACED_BY]-(o:Order)",
		"(a) - [:KNOWS] - (b)",
		"(:Order) - [:CORR] -> (:Customer)",
	}
	for _, in := range rels {
		t.Run(in, func(t *testing.T) {
			first := MustParseRelationship(in)
			second, err := ParseRelationship(first.String())
			require.NoError(t, err, first.String())
			assert.Equal(t, first, second)
		})
	}

	records := []string{
		"(record:OrderRecord WHERE record.total > 0 {orderId, OPTIONAL note})",
		"(r:A:B {x})",
		"(record:Record)",
	}
	for _, in := range records {
		t.Run(in, func(t *testing.T) {
			first := MustParseRecord(in)
			second, err := ParseRecord(first.String())
			require.NoError(t, err, first.String())
			assert.Equal(t, first, second)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		kind ValueKind
		refs []string
	}{
		{"'x'", ValueLiteral, nil},
		{`"a.b"`, ValueLiteral, nil},
		{"12.5", ValueLiteral, nil},
		{"-3", ValueLiteral, nil},
		{"TRUE", ValueLiteral, nil},
		{"null", ValueLiteral, nil},
		{"$limit", ValueParameter, nil},
		{"record.id", ValueReference, []string{"record"}},
		{"toLower(record.name)", ValueExpression, []string{"record"}},
		{"a.x + b.y + a.z", ValueExpression, []string{"a", "b"}},
		{"'lit.eral' + c.v", ValueExpression, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := ParseValue(tt.in)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.refs, v.References())
			assert.Equal(t, tt.in, v.String())
		})
	}
}

func TestRename(t *testing.T) {
	rename := func(a string) string {
		if a == "ts" {
			return "timestamp"
		}
		return a
	}

	orig := MustParseNode("(e:Event {ts: record.ts, label: 'record.ts', d: duration(record.ts)})")
	got := orig.Rename(rename)

	assert.Equal(t, "(e:Event {timestamp: record.timestamp, label: 'record.ts', d: duration(record.timestamp)})", got.String())
	assert.Equal(t, "ts", orig.Properties[0].Attribute, "receiver must not change")

	where := MustParseNode("(e:Event WHERE e.ts > 10 AND e.name = \"e.ts\")").Rename(rename)
	assert.Equal(t, "e.timestamp > 10 AND e.name = \"e.ts\"", where.Where)

	rec := MustParseRecord("(record:EventRecord {ts, OPTIONAL other})").Rename(rename)
	assert.Equal(t, []string{"timestamp"}, rec.RequiredAttributes())

	rel := MustParseRelationship("(a {ts: 1})-[:T {ts: a.ts}]->(b)").Rename(rename)
	assert.Equal(t, "(a {timestamp: 1})-[:T {timestamp: a.timestamp}]->(b)", rel.String())
}
