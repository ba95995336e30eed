package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg"
	"github.com/zero-day-ai/ekg/schema"
)

func (a *app) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a schema document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := ekg.LoadSchema(a.cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema %s %s: %s, %s, %s\n", s.Name(), s.Version(),
				plural(len(s.Records()), "record type"),
				plural(len(s.NodeTypes()), "node type"),
				plural(len(s.RelationTypes()), "relation type"))

			table := newTable(out, "Type", "Kind", "Constructors", "Flags")
			for _, t := range append(s.NodeTypes(), s.RelationTypes()...) {
				methods := make([]string, 0, len(t.Constructors))
				for _, c := range t.Constructors {
					methods = append(methods, c.Method())
				}
				if err := table.Append(t.Name, t.Kind.String(), joinOrDash(methods), joinOrDash(typeFlags(t))); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func typeFlags(t *schema.EntityType) []string {
	var flags []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"infer_df", t.InferDF},
		{"include_label_in_df", t.IncludeLabelInDF},
		{"merge_duplicate_df", t.MergeDuplicateDF},
		{"delete_parallel_df", t.DeleteParallelDF},
		{"model_as_node", t.ModelAsNode},
		{"event_like", t.EventLike},
		{"attribute_like", t.AttributeLike},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	if keys := t.IdentifierKeys(); len(keys) > 0 {
		flags = append(flags, "id="+strings.Join(keys, "+"))
	}
	return flags
}
