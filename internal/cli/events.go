package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg"
	"github.com/zero-day-ai/ekg/journal"
)

func (a *app) newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events RUN_ID",
		Short: "Show the journal of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Redis.Enabled() {
				return fmt.Errorf("run journal: %w: set redis.url or EKG_REDIS_URL", ekg.ErrNotConnected)
			}
			j, err := journal.NewRedisJournal(journal.RedisOptions{
				URL:    a.cfg.Redis.URL,
				Prefix: a.cfg.Redis.GetPrefix(),
			})
			if err != nil {
				return err
			}
			defer ekg.CloseWithLog(j, a.logger, "run journal")

			events, err := j.Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("no events recorded for run %s", args[0])
			}

			table := newTable(cmd.OutOrStdout(), "Time", "Event", "Phase", "Step", "Rows", "Error")
			for _, ev := range events {
				step := ev.Constructor
				if step == "" {
					step = ev.Type
				}
				if err := table.Append(ev.Time.Format(time.RFC3339), string(ev.Kind), ev.Phase,
					step, strconv.FormatInt(ev.Rows, 10), ev.Error); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}
