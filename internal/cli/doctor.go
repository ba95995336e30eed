package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg"
)

var errUnhealthy = errors.New("one or more checks failed")

func (a *app) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the schema, store and run journal",
		Long: `Run diagnostic checks on every dependency the configuration names:

- the schema document parses and validates
- the Neo4j server is reachable and recent enough
- the APOC procedures used for batching are installed
- the Redis run journal answers, when configured`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := ekg.Diagnose(cmd.Context(), a.cfg, ekg.WithLogger(a.logger))

			out := cmd.OutOrStdout()
			table := newTable(out, "", "Check", "Status", "Message")
			for _, c := range checks {
				if err := table.Append(statusIcon(c.Status.Status), c.Name, c.Status.Status, c.Status.Message); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			if !ekg.Healthy(checks) {
				for _, c := range checks {
					if c.Status.IsUnhealthy() && c.Status.Details["error"] != nil {
						fmt.Fprintf(out, "%s: %v\n", c.Name, c.Status.Details["error"])
					}
				}
				return errUnhealthy
			}
			return nil
		},
	}
}
