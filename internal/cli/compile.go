package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg"
)

func (a *app) newCompileCmd() *cobra.Command {
	var (
		flags     requestFlags
		showQuery bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the steps and templates a build would run",
		Long: `Compile the schema without touching the store.

Merge strategies are chosen as if the store were empty, so every by-record
node type below the merge threshold is planned merge-first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			s, err := ekg.LoadSchema(a.cfg)
			if err != nil {
				return err
			}
			p, err := ekg.NewPipeline(a.cfg, s, nil, ekg.WithLogger(a.logger))
			if err != nil {
				return err
			}
			steps, err := p.Plan(req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showQuery {
				for _, st := range steps {
					if st.Hook != "" {
						fmt.Fprintf(out, "// %s (inference hook %q)\n\n", st.Name, st.Hook)
						continue
					}
					fmt.Fprintf(out, "%s\n\n", st.Template)
				}
				return nil
			}

			table := newTable(out, "Phase", "Type", "Step", "Strategy", "Mode")
			for _, st := range steps {
				mode := st.Template.Mode.String()
				if st.Hook != "" {
					mode = "hook " + st.Hook
				}
				strategy := st.Strategy
				if strategy == "" {
					strategy = "-"
				}
				if err := table.Append(st.Phase.String(), st.Type, st.Name, strategy, mode); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&showQuery, "show-query", false, "print the Cypher of every step")
	return cmd
}
