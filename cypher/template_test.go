package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/ekg/ekgerr"
)

func TestBuilder_Single(t *testing.T) {
	tpl, err := New("count_nodes", "MATCH (n:${labels}) WHERE n.kind = $kind RETURN count(n) AS count").
		Labels("labels", "Order", "Entity").
		Bind("kind", "retail").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "count_nodes", tpl.Name)
	assert.Equal(t, ModeSingle, tpl.Mode)
	assert.Equal(t, "MATCH (n:Order:Entity) WHERE n.kind = $kind RETURN count(n) AS count", tpl.Query)
	assert.Equal(t, map[string]any{"kind": "retail"}, tpl.Params)
	assert.Equal(t, map[string]string{"labels": "Order:Entity"}, tpl.Substitutions)
	assert.Equal(t, []string{"kind"}, tpl.ParamNames())
}

func TestBuilder_Commit(t *testing.T) {
	tpl, err := NewCommit("mark", "MATCH (r:${label}) WHERE r.done IS NULL WITH r LIMIT $limit SET r.done = true RETURN count(*)").
		Identifier("label", "Record").
		Build()
	require.NoError(t, err)
	assert.Equal(t, ModeCommit, tpl.Mode)
	assert.Empty(t, tpl.ParamNames(), "limit is engine-bound")

	_, err = NewCommit("nolimit", "MATCH (r) SET r.done = true RETURN count(*)").Build()
	var tce *ekgerr.TemplateCompilationError
	require.ErrorAs(t, err, &tce)
	assert.Equal(t, "nolimit", tce.Constructor)
}

func TestBuilder_Iterate(t *testing.T) {
	tpl, err := NewIterate("df", "MATCH (e:${event}) RETURN e", "MERGE (e)-[:${rel} {entityType: $entityType}]->(e)").
		Identifier("event", "Event").
		Identifier("rel", "DF").
		Bind("entityType", "Order").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (e:Event) RETURN e", tpl.Source)
	assert.Contains(t, tpl.Query, "[:DF {entityType: $entityType}]")
	// structural values and runtime parameters are kept apart
	assert.Equal(t, map[string]string{"event": "Event", "rel": "DF"}, tpl.Substitutions)
	assert.NotContains(t, tpl.Substitutions, "entityType")
	assert.Contains(t, tpl.String(), "// source:")

	_, err = NewIterate("empty", " ", "RETURN 1").Build()
	assert.Error(t, err)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		errName string
	}{
		{
			name:    "unresolved placeholder",
			builder: New("q", "MATCH (n:${missing}) RETURN n"),
			errName: "missing",
		},
		{
			name:    "injection in identifier",
			builder: New("q", "MATCH (n:${l}) RETURN n").Identifier("l", "Order) DETACH DELETE (n"),
			errName: "Order) DETACH DELETE (n",
		},
		{
			name:    "invalid label",
			builder: New("q", "MATCH (n:${l}) RETURN n").Labels("l", "Order", "bad label"),
			errName: "bad label",
		},
		{
			name:    "no labels",
			builder: New("q", "MATCH (n:${l}) RETURN n").Labels("l"),
			errName: "l",
		},
		{
			name:    "reserved parameter",
			builder: New("q", "RETURN $limit").Bind("limit", 5),
			errName: "limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			var tce *ekgerr.TemplateCompilationError
			require.ErrorAs(t, err, &tce)
			assert.Equal(t, tt.errName, tce.Name)
		})
	}
}

func TestBuilder_SinglePass(t *testing.T) {
	// substituted text containing a placeholder is not expanded again
	tpl, err := New("q", "RETURN ${a}, ${b}").
		Fragment("a", "'${b}'").
		Fragment("b", "2").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "RETURN '${b}', 2", tpl.Query)
	assert.Equal(t, "'${b}'", tpl.Substitutions["a"])
}

func TestBuilder_SubstitutionsAreCopied(t *testing.T) {
	b := New("q", "MATCH (n:${l}) RETURN n").Identifier("l", "Order")
	tpl, err := b.Build()
	require.NoError(t, err)

	b.Identifier("l", "Customer")
	assert.Equal(t, "Order", tpl.Substitutions["l"])
}

func TestTemplate_ParamNames(t *testing.T) {
	tpl := Template{
		Source: "MATCH (n) WHERE n.a = $a AND n.s = '$notParam' RETURN n",
		Query:  "SET n.b = $b, n.a2 = $a LIMIT $batchSize",
	}
	assert.Equal(t, []string{"a", "b"}, tpl.ParamNames())
}

func TestTemplate_WithParams(t *testing.T) {
	base := Template{Name: "q", Params: map[string]any{"a": 1, "b": 2}}
	got := base.WithParams(map[string]any{"b": 3, "c": 4})
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, got.Params)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, base.Params)
}
