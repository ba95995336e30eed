package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/pattern"
)

// Load reads, parses and validates a schema file.
func Load(path string) (*Schema, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return New(doc)
}

// Parse decodes and validates a schema from YAML bytes.
func Parse(data []byte) (*Schema, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return New(doc)
}

// New validates a document and builds the schema. No partial schema is
// returned on error.
func New(doc *Document) (*Schema, error) {
	b := &builder{
		s:           &Schema{name: doc.Name, version: doc.Version, byName: map[string]*EntityType{}},
		recordTypes: map[string]bool{},
		nodeNames:   map[string]bool{},
		relNodes:    map[string]bool{},
	}
	if err := b.records(doc.Records); err != nil {
		return nil, err
	}
	if err := b.declare(doc); err != nil {
		return nil, err
	}
	for _, td := range doc.Nodes {
		if !included(td) {
			continue
		}
		t, err := b.nodeType(td)
		if err != nil {
			return nil, err
		}
		b.s.nodes = append(b.s.nodes, t)
		b.s.byName[t.Name] = t
	}
	for _, td := range doc.Relations {
		if !included(td) {
			continue
		}
		t, err := b.relationType(td)
		if err != nil {
			return nil, err
		}
		b.s.relations = append(b.s.relations, t)
		b.s.byName[t.Name] = t
	}
	return b.s, nil
}

type builder struct {
	s           *Schema
	recordTypes map[string]bool
	// nodeNames are node type names; relNodes are relation types modeled as nodes
	nodeNames map[string]bool
	relNodes  map[string]bool
}

func included(td TypeDoc) bool {
	return td.Include == nil || *td.Include
}

func invalid(typ, format string, args ...any) error {
	return &ekgerr.SchemaValidationError{Type: typ, Reason: fmt.Sprintf(format, args...)}
}

func badPattern(typ, field string, err error) error {
	return &ekgerr.SchemaValidationError{Type: typ, Reason: "invalid " + field, Cause: err}
}

func (b *builder) records(docs []RecordDoc) error {
	for i, rd := range docs {
		name := fmt.Sprintf("records[%d]", i)
		var rec pattern.RecordNode
		if rd.Pattern != "" {
			r, err := pattern.ParseRecord(rd.Pattern)
			if err != nil {
				return badPattern(name, "record pattern", err)
			}
			rec = r
		} else {
			rec = pattern.NewRecord("", splitLabels(rd.RecordLabels), strings.TrimSpace(rd.Where), rd.RequiredAttributes, rd.OptionalAttributes)
		}
		if len(rec.RecordTypes) == 0 {
			return invalid(name, "record declaration needs at least one record label")
		}
		for _, t := range rec.RecordTypes {
			if !pattern.IsIdentifier(t) {
				return invalid(name, "record label %q is not an identifier", t)
			}
			b.recordTypes[t] = true
		}
		for _, a := range append(rec.RequiredAttributes(), rec.OptionalAttributes()...) {
			if !pattern.IsIdentifier(a) {
				return invalid(name, "attribute %q is not an identifier", a)
			}
		}
		b.s.records = append(b.s.records, rec)
	}
	return nil
}

// declare registers every type name before constructors are resolved so
// that endpoints may refer to types declared later in the document.
func (b *builder) declare(doc *Document) error {
	seen := map[string]bool{}
	check := func(td TypeDoc) error {
		if td.Type == "" {
			return invalid("<unnamed>", "type name is required")
		}
		if !pattern.IsIdentifier(td.Type) {
			return invalid(td.Type, "type name is not an identifier")
		}
		if seen[td.Type] {
			return invalid(td.Type, "type declared more than once")
		}
		seen[td.Type] = true
		return nil
	}
	for _, td := range doc.Nodes {
		if !included(td) {
			continue
		}
		if err := check(td); err != nil {
			return err
		}
		b.nodeNames[td.Type] = true
	}
	for _, td := range doc.Relations {
		if !included(td) {
			continue
		}
		if err := check(td); err != nil {
			return err
		}
		if td.ModelAsNode {
			b.relNodes[td.Type] = true
		}
	}
	return nil
}

func (b *builder) nodeType(td TypeDoc) (*EntityType, error) {
	t := &EntityType{
		Name:             td.Type,
		Kind:             KindNode,
		InferDF:          td.InferDF,
		IncludeLabelInDF: td.InferDF && td.IncludeLabelInDF,
		MergeDuplicateDF: td.InferDF && td.MergeDuplicateDF,
		DeleteParallelDF: td.InferDF && td.DeleteParallelDF,
		ModelAsNode:      td.ModelAsNode,
	}
	if len(td.Constructors) == 0 {
		return nil, invalid(t.Name, "at least one constructor is required")
	}
	for i, cd := range td.Constructors {
		c, err := b.nodeConstructor(t, i, cd)
		if err != nil {
			return nil, err
		}
		t.Constructors = append(t.Constructors, c)
	}
	if err := checkIdentifierScheme(t); err != nil {
		return nil, err
	}
	labels := t.Labels()
	t.EventLike = t.Name == DefaultEventLabel || slices.Contains(labels, DefaultEventLabel)
	t.AttributeLike = slices.Contains(labels, AttributeLabel)
	if td.EventLike != nil {
		t.EventLike = *td.EventLike
	}
	if td.AttributeLike != nil {
		t.AttributeLike = *td.AttributeLike
	}
	return t, nil
}

func (b *builder) relationType(td TypeDoc) (*EntityType, error) {
	if td.InferDF && !td.ModelAsNode {
		return nil, invalid(td.Type, "infer_df on a relation type requires model_as_node")
	}
	t := &EntityType{
		Name:             td.Type,
		Kind:             KindRelation,
		InferDF:          td.InferDF,
		IncludeLabelInDF: td.InferDF && td.IncludeLabelInDF,
		MergeDuplicateDF: td.InferDF && td.MergeDuplicateDF,
		DeleteParallelDF: td.InferDF && td.DeleteParallelDF,
		ModelAsNode:      td.ModelAsNode,
	}
	if len(td.Constructors) == 0 {
		return nil, invalid(t.Name, "at least one constructor is required")
	}
	for i, cd := range td.Constructors {
		c, err := b.relationConstructor(t, i, cd)
		if err != nil {
			return nil, err
		}
		t.Constructors = append(t.Constructors, c)
	}
	if td.EventLike != nil {
		t.EventLike = *td.EventLike
	}
	if td.AttributeLike != nil {
		t.AttributeLike = *td.AttributeLike
	}
	return t, nil
}

// methods lists the production methods present on a constructor entry.
func methods(cd ConstructorDoc) []string {
	var out []string
	if cd.PrevalentRecord != "" {
		out = append(out, "prevalent_record")
	}
	if cd.Relation != "" {
		out = append(out, "relation")
	}
	if len(cd.Nodes) > 0 || len(cd.Relations) > 0 {
		out = append(out, "nodes/relations")
	}
	if cd.Inference != "" {
		out = append(out, "inference")
	}
	return out
}

func exactlyOne(t *EntityType, i int, cd ConstructorDoc) (string, error) {
	m := methods(cd)
	switch len(m) {
	case 1:
		return m[0], nil
	case 0:
		return "", invalid(t.Name, "constructor %d has no production method", i)
	default:
		return "", invalid(t.Name, "constructor %d declares more than one production method (%s)", i, strings.Join(m, ", "))
	}
}

func (b *builder) nodeConstructor(t *EntityType, i int, cd ConstructorDoc) (Constructor, error) {
	method, err := exactlyOne(t, i, cd)
	if err != nil {
		return nil, err
	}
	bs := base{owner: t.Name, kind: KindNode, index: i}
	eventLabel := orDefault(cd.EventLabel, DefaultEventLabel)
	corrType := orDefault(cd.CorrType, DefaultCorrType)

	switch method {
	case "prevalent_record":
		rec, err := b.prevalentRecord(t.Name, cd.PrevalentRecord)
		if err != nil {
			return nil, err
		}
		result, err := nodeResult(t.Name, cd.Result)
		if err != nil {
			return nil, err
		}
		c := &NodeByRecord{
			base:                      bs,
			Record:                    rec,
			Result:                    result,
			SetLabels:                 splitLabels(cd.SetLabels),
			InferObserved:             cd.InferObserved,
			InferCorrFromEventRecord:  cd.InferCorrFromEventRecord,
			InferCorrFromEntityRecord: cd.InferCorrFromEntityRecord,
			EventLabel:                eventLabel,
			CorrType:                  corrType,
		}
		for j, ird := range cd.InferredRelationships {
			ir, err := b.inferredRelationship(t.Name, j, ird, eventLabel, corrType)
			if err != nil {
				return nil, err
			}
			c.InferredRelationships = append(c.InferredRelationships, ir)
		}
		return c, nil

	case "relation":
		if !t.ModelAsNode {
			return nil, invalid(t.Name, "constructor %d builds from a relationship but the type does not set model_as_node", i)
		}
		rel, err := pattern.ParseRelationship(cd.Relation)
		if err != nil {
			return nil, badPattern(t.Name, "relation pattern", err)
		}
		for _, end := range []pattern.Node{rel.From, rel.To} {
			if err := b.checkEndpoint(t.Name, end); err != nil {
				return nil, err
			}
		}
		result, err := nodeResult(t.Name, cd.Result)
		if err != nil {
			return nil, err
		}
		return &NodeBySubgraph{
			base:                        bs,
			Relation:                    rel,
			Result:                      result,
			SetLabels:                   splitLabels(cd.SetLabels),
			InferReifiedRelation:        cd.InferReifiedRelation,
			InferCorrFromReifiedParents: cd.InferCorrFromReifiedParents,
			EventLabel:                  eventLabel,
			CorrType:                    corrType,
		}, nil

	case "inference":
		return &ByInference{base: bs, Hook: cd.Inference, Params: cd.InferenceParams}, nil

	default:
		return nil, invalid(t.Name, "constructor %d: %s applies to relation types only", i, method)
	}
}

func (b *builder) relationConstructor(t *EntityType, i int, cd ConstructorDoc) (Constructor, error) {
	method, err := exactlyOne(t, i, cd)
	if err != nil {
		return nil, err
	}
	bs := base{owner: t.Name, kind: KindRelation, index: i}
	eventLabel := orDefault(cd.EventLabel, DefaultEventLabel)
	corrType := orDefault(cd.CorrType, DefaultCorrType)

	if method == "inference" {
		return &ByInference{base: bs, Hook: cd.Inference, Params: cd.InferenceParams}, nil
	}
	if method == "relation" {
		return nil, invalid(t.Name, "constructor %d: relation applies to node types only", i)
	}

	from, to, err := b.endpoints(t.Name, cd)
	if err != nil {
		return nil, err
	}
	result, err := relationResult(t.Name, cd.Result, from, to)
	if err != nil {
		return nil, err
	}
	optional, err := optionalProperties(t.Name, cd.SetOptionalProperties)
	if err != nil {
		return nil, err
	}

	if method == "prevalent_record" {
		rec, err := b.prevalentRecord(t.Name, cd.PrevalentRecord)
		if err != nil {
			return nil, err
		}
		return &RelationByRecord{
			base:                        bs,
			Record:                      rec,
			From:                        from,
			To:                          to,
			Result:                      result,
			OptionalProperties:          optional,
			ModelAsNode:                 t.ModelAsNode,
			InferCorrFromReifiedParents: cd.InferCorrFromReifiedParents,
			EventLabel:                  eventLabel,
			CorrType:                    corrType,
		}, nil
	}

	c := &RelationBySubgraph{
		base:                        bs,
		From:                        from,
		To:                          to,
		Result:                      result,
		OptionalProperties:          optional,
		ModelAsNode:                 t.ModelAsNode,
		InferCorrFromReifiedParents: cd.InferCorrFromReifiedParents,
		EventLabel:                  eventLabel,
		CorrType:                    corrType,
	}
	pos := 0
	for _, text := range cd.Nodes {
		n, err := pattern.ParseNode(text)
		if err != nil {
			return nil, badPattern(t.Name, "nodes pattern", err)
		}
		c.Nodes = append(c.Nodes, n.WithPosition(pos))
		pos++
	}
	for _, text := range cd.Relations {
		r, err := pattern.ParseRelationship(text)
		if err != nil {
			return nil, badPattern(t.Name, "relations pattern", err)
		}
		r.From = r.From.WithPosition(pos)
		r.To = r.To.WithPosition(pos + 1)
		pos += 2
		c.Relations = append(c.Relations, r)
	}
	return c, nil
}

func (b *builder) endpoints(typ string, cd ConstructorDoc) (pattern.Node, pattern.Node, error) {
	if cd.FromNode == "" || cd.ToNode == "" {
		return pattern.Node{}, pattern.Node{}, invalid(typ, "from_node and to_node are required")
	}
	from, err := pattern.ParseNode(cd.FromNode)
	if err != nil {
		return pattern.Node{}, pattern.Node{}, badPattern(typ, "from_node", err)
	}
	to, err := pattern.ParseNode(cd.ToNode)
	if err != nil {
		return pattern.Node{}, pattern.Node{}, badPattern(typ, "to_node", err)
	}
	if from.Anonymous() || to.Anonymous() {
		return pattern.Node{}, pattern.Node{}, invalid(typ, "from_node and to_node must be named")
	}
	if from.Name == to.Name {
		return pattern.Node{}, pattern.Node{}, invalid(typ, "from_node and to_node must have distinct names")
	}
	for _, end := range []pattern.Node{from, to} {
		if err := b.checkEndpoint(typ, end); err != nil {
			return pattern.Node{}, pattern.Node{}, err
		}
	}
	return from, to, nil
}

// checkEndpoint requires at least one endpoint label to name a declared
// node type or a relation type modeled as nodes.
func (b *builder) checkEndpoint(typ string, n pattern.Node) error {
	if len(n.Labels) == 0 {
		return invalid(typ, "endpoint %s has no labels", n.String())
	}
	for _, l := range n.Labels {
		if b.nodeNames[l] || b.relNodes[l] {
			return nil
		}
	}
	return invalid(typ, "endpoint label %q is not a declared node type", n.Labels[0])
}

func (b *builder) prevalentRecord(typ, text string) (pattern.RecordNode, error) {
	rec, err := pattern.ParseRecord(text)
	if err != nil {
		return rec, badPattern(typ, "prevalent_record", err)
	}
	for _, rt := range rec.RecordTypes {
		if !b.recordTypes[rt] {
			return rec, invalid(typ, "record type %q is not declared", rt)
		}
	}
	return rec, nil
}

func (b *builder) inferredRelationship(typ string, j int, d InferredRelationshipDoc, eventLabel, corrType string) (InferredRelationship, error) {
	ir := InferredRelationship{
		RecordTypes:  splitLabels(d.RecordLabels),
		RelationType: orDefault(d.RelationType, corrType),
		Event:        pattern.Node{Name: "event", Labels: []string{eventLabel}},
	}
	if len(ir.RecordTypes) == 0 {
		ir.RecordTypes = []string{"EventRecord"}
	}
	for _, rt := range ir.RecordTypes {
		if !b.recordTypes[rt] {
			return ir, invalid(typ, "inferred relationship %d: record type %q is not declared", j, rt)
		}
	}
	if !pattern.IsIdentifier(ir.RelationType) {
		return ir, invalid(typ, "inferred relationship %d: relation type %q is not an identifier", j, ir.RelationType)
	}
	if d.Event != "" {
		ev, err := pattern.ParseNode(d.Event)
		if err != nil {
			return ir, badPattern(typ, "inferred relationship event", err)
		}
		if ev.Anonymous() {
			ev.Name = "event"
		}
		ir.Event = ev
	}
	return ir, nil
}

// nodeResult parses a node result pattern, adding the type label when the
// pattern carries none.
func nodeResult(typ, text string) (pattern.Node, error) {
	if strings.TrimSpace(text) == "" {
		return pattern.Node{Name: strings.ToLower(typ[:1]) + typ[1:], Labels: []string{typ}}, nil
	}
	n, err := pattern.ParseNode(text)
	if err != nil {
		return n, badPattern(typ, "result", err)
	}
	if n.Anonymous() {
		return n, invalid(typ, "result pattern must be named")
	}
	if len(n.Labels) == 0 {
		n.Labels = []string{typ}
	} else if !slices.Contains(n.Labels, typ) {
		return n, invalid(typ, "result %s does not carry the type label", n.String())
	}
	if n.Where != "" {
		return n, invalid(typ, "result pattern cannot have a WHERE condition")
	}
	return n, nil
}

func relationResult(typ, text string, from, to pattern.Node) (pattern.Relationship, error) {
	if strings.TrimSpace(text) == "" {
		return pattern.Relationship{
			Types:     []string{typ},
			From:      pattern.Node{Name: from.Name},
			To:        pattern.Node{Name: to.Name},
			Direction: pattern.LeftToRight,
		}, nil
	}
	r, err := pattern.ParseRelationship(text)
	if err != nil {
		return r, badPattern(typ, "result", err)
	}
	if r.PrimaryType() != typ {
		return r, invalid(typ, "result type %q does not match the relation type", r.PrimaryType())
	}
	if r.FromName() != from.Name || r.ToName() != to.Name {
		return r, invalid(typ, "result endpoints (%s, %s) must be from_node %q and to_node %q", r.FromName(), r.ToName(), from.Name, to.Name)
	}
	return r, nil
}

func optionalProperties(typ, text string) ([]pattern.Property, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	props, err := pattern.ParseProperties(text)
	if err != nil {
		return nil, badPattern(typ, "set_optional_properties", err)
	}
	for i := range props {
		props[i].Optional = true
	}
	return props, nil
}

// checkIdentifierScheme requires all node constructors of a type to agree on
// whether instances are keyed by attributes or by a surrogate id.
func checkIdentifierScheme(t *EntityType) error {
	var (
		first []string
		set   bool
	)
	for _, c := range t.Constructors {
		var keys []string
		switch c := c.(type) {
		case *NodeByRecord:
			keys = c.Result.Identifiers()
		case *NodeBySubgraph:
			keys = c.Result.Identifiers()
		default:
			continue
		}
		if !set {
			first, set = keys, true
			continue
		}
		if (len(first) == 0) != (len(keys) == 0) {
			return invalid(t.Name, "constructor %s mixes attribute identifiers with surrogate ids", c.ID())
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
