package schema

import (
	"maps"

	"github.com/zero-day-ai/ekg/pattern"
)

// RenameAttributes returns a new schema in which every attribute named by a
// key of renames is replaced by the mapped name, in record declarations,
// constructor patterns and conditions alike. The receiver is not modified.
func (s *Schema) RenameAttributes(renames map[string]string) *Schema {
	rn := func(a string) string {
		if to, ok := renames[a]; ok {
			return to
		}
		return a
	}

	out := &Schema{
		name:    s.name,
		version: s.version,
		byName:  make(map[string]*EntityType, len(s.byName)),
	}
	for _, r := range s.records {
		out.records = append(out.records, r.Rename(rn))
	}
	for _, t := range s.nodes {
		ct := t.rename(rn)
		out.nodes = append(out.nodes, ct)
		out.byName[ct.Name] = ct
	}
	for _, t := range s.relations {
		ct := t.rename(rn)
		out.relations = append(out.relations, ct)
		out.byName[ct.Name] = ct
	}
	return out
}

func (t *EntityType) rename(rn pattern.Renamer) *EntityType {
	out := *t
	out.Constructors = make([]Constructor, len(t.Constructors))
	for i, c := range t.Constructors {
		out.Constructors[i] = renameConstructor(c, rn)
	}
	return &out
}

func renameConstructor(c Constructor, rn pattern.Renamer) Constructor {
	switch c := c.(type) {
	case *NodeByRecord:
		cp := *c
		cp.Record = c.Record.Rename(rn)
		cp.Result = c.Result.Rename(rn)
		cp.SetLabels = append([]string(nil), c.SetLabels...)
		cp.InferredRelationships = make([]InferredRelationship, len(c.InferredRelationships))
		for i, ir := range c.InferredRelationships {
			cp.InferredRelationships[i] = InferredRelationship{
				RecordTypes:  append([]string(nil), ir.RecordTypes...),
				RelationType: ir.RelationType,
				Event:        ir.Event.Rename(rn),
			}
		}
		return &cp
	case *NodeBySubgraph:
		cp := *c
		cp.Relation = c.Relation.Rename(rn)
		cp.Result = c.Result.Rename(rn)
		cp.SetLabels = append([]string(nil), c.SetLabels...)
		return &cp
	case *RelationByRecord:
		cp := *c
		cp.Record = c.Record.Rename(rn)
		cp.From = c.From.Rename(rn)
		cp.To = c.To.Rename(rn)
		cp.Result = c.Result.Rename(rn)
		cp.OptionalProperties = renameProps(c.OptionalProperties, rn)
		return &cp
	case *RelationBySubgraph:
		cp := *c
		cp.From = c.From.Rename(rn)
		cp.To = c.To.Rename(rn)
		cp.Result = c.Result.Rename(rn)
		cp.OptionalProperties = renameProps(c.OptionalProperties, rn)
		cp.Nodes = make([]pattern.Node, len(c.Nodes))
		for i, n := range c.Nodes {
			cp.Nodes[i] = n.Rename(rn)
		}
		cp.Relations = make([]pattern.Relationship, len(c.Relations))
		for i, r := range c.Relations {
			cp.Relations[i] = r.Rename(rn)
		}
		return &cp
	case *ByInference:
		cp := *c
		cp.Params = maps.Clone(c.Params)
		return &cp
	default:
		panic("schema: unknown constructor variant")
	}
}

func renameProps(props []pattern.Property, rn pattern.Renamer) []pattern.Property {
	if props == nil {
		return nil
	}
	n := pattern.Node{Properties: props}.Rename(rn)
	return n.Properties
}
