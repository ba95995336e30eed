// Package cli implements the ekg command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg/config"
	"github.com/zero-day-ai/ekg/pipeline"
)

// app holds the state shared by every command.
type app struct {
	configPath string
	schemaPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the root command with signal-aware cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ekg",
		Short: "Build event knowledge graphs in Neo4j",
		Long: `Build event knowledge graphs in Neo4j from a declarative schema.

Records already loaded into the store are turned into entities, relations,
correlation edges and directly-follows edges in seven ordered phases.
Settings come from ekg.yaml, a .env file and EKG_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file or directory containing "+config.FileName)
	root.PersistentFlags().StringVarP(&a.schemaPath, "schema", "s", "", "schema document (overrides the config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.newValidateCmd(),
		a.newCompileCmd(),
		a.newBuildCmd(),
		a.newStatsCmd(),
		a.newExportCmd(),
		a.newEventsCmd(),
		a.newDoctorCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.schemaPath != "" {
		cfg.Schema = a.schemaPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.GetLevel()}
	if lc.JSON() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// requestFlags are the selection flags shared by compile and build.
type requestFlags struct {
	phases  []string
	types   []string
	prepare bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.phases, "phase", nil, "phases to run, by number (1-7) or name; default all")
	cmd.Flags().StringSliceVar(&f.types, "types", nil, "entity types to include; default all")
	cmd.Flags().BoolVar(&f.prepare, "prepare", false, "create indexes before the first phase")
}

func (f *requestFlags) request() (pipeline.Request, error) {
	req := pipeline.Request{Types: f.types, Prepare: f.prepare}
	for _, s := range f.phases {
		p, err := pipeline.ParsePhase(s)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Phases = append(req.Phases, p)
	}
	return req, nil
}

func newTable(w io.Writer, header ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(header...)
	return table
}

func statusIcon(status string) string {
	switch status {
	case "healthy":
		return "✓"
	case "degraded":
		return "⚠"
	default:
		return "✗"
	}
}

func joinOrDash(ss []string) string {
	if len(ss) == 0 {
		return "-"
	}
	return strings.Join(ss, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
