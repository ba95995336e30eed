package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg"
	"github.com/zero-day-ai/ekg/pipeline"
)

func (a *app) newBuildCmd() *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the construction phases against the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := ekg.Open(ctx, a.cfg, ekg.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(ctx); err != nil {
					a.logger.Warn("failed to close client", "error", err)
				}
			}()

			report, runErr := client.Build(ctx, req)
			if report != nil {
				if err := printReport(cmd, report); err != nil {
					return err
				}
			}
			if runErr != nil {
				var perr *pipeline.PipelineError
				if errors.As(runErr, &perr) {
					a.logger.Error("build failed", "run_id", perr.RunID, "phase", perr.Phase.String(), "type", perr.Type)
				}
				return runErr
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func printReport(cmd *cobra.Command, report *pipeline.Report) error {
	out := cmd.OutOrStdout()
	table := newTable(out, "Phase", "Step", "Attempts", "Batch Size", "Rows", "Duration")
	for _, r := range report.Steps {
		attempts := strconv.Itoa(r.Attempts)
		if r.Skipped {
			attempts = "skipped"
		}
		if err := table.Append(r.Phase.String(), r.Name, attempts, strconv.Itoa(r.BatchSize),
			strconv.FormatInt(r.Rows, 10), r.Duration.Round(time.Millisecond).String()); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s: %s in %s\n", report.RunID, plural(len(report.Steps), "step"),
		report.Duration.Round(time.Millisecond))
	return nil
}
