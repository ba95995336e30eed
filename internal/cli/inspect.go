package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/ekg"
	"github.com/zero-day-ai/ekg/cypher"
	"github.com/zero-day-ai/ekg/inspect"
)

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count nodes per label and relationships per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, err := ekg.Open(ctx, a.cfg, ekg.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer func() { _ = client.Close(ctx) }()

			stats, err := client.Stats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := countTable(cmd, "Label", stats.Nodes); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return countTable(cmd, "Relationship", stats.Edges)
		},
	}
}

func countTable(cmd *cobra.Command, kind string, counts []inspect.Count) error {
	table := newTable(cmd.OutOrStdout(), kind, "Count")
	for _, c := range counts {
		if err := table.Append(c.Name, strconv.FormatInt(c.Count, 10)); err != nil {
			return err
		}
	}
	return table.Render()
}

func (a *app) newExportCmd() *cobra.Command {
	var (
		entity string
		where  []string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the event log of an entity type as JSON lines",
		Long: `Write one JSON object per event correlated to an instance of the
entity type, grouped by instance and ordered by the directly-follows order.

Filters apply to events. They take the form attr=value, attr!=value,
attr>value, attr>=value, attr<value or attr<=value, or name the operator:
"activity starts_with Pay", "activity in Pay,Ship", "resource is_null".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			preds, err := parseFilters(where)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := ekg.Open(ctx, a.cfg, ekg.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer func() { _ = client.Close(ctx) }()

			t, ok := client.Schema().Type(entity)
			if !ok {
				return fmt.Errorf("%w: %s", ekg.ErrUnknownType, entity)
			}
			rows, err := client.ExportEventLog(ctx, inspect.EventLogQuery{Type: t, Event: preds, Limit: limit})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range rows {
				if err := enc.Encode(map[string]any{"case": r.Case, "entity": r.Entity, "event": r.Event}); err != nil {
					return err
				}
			}
			a.logger.Info("event log exported", "entity", entity, "rows", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "entity type to export")
	cmd.Flags().StringArrayVar(&where, "where", nil, "event filter, repeatable")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of rows; 0 for no limit")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

// filterTokens is ordered so two-character operators match first.
var filterTokens = []string{"!=", ">=", "<=", "=", ">", "<"}

func parseFilters(exprs []string) ([]cypher.Predicate, error) {
	preds := make([]cypher.Predicate, 0, len(exprs))
	for _, expr := range exprs {
		pred, err := parseFilter(expr)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

// parseFilter reads "attr<op>value" with a symbolic operator, or
// "attr op [value]" with any operator name, e.g. "resource is_not_null" or
// "activity in Pay,Ship".
func parseFilter(expr string) (cypher.Predicate, error) {
	if fields := strings.Fields(expr); len(fields) >= 2 {
		if op, err := cypher.ParseOp(strings.ToLower(fields[1])); err == nil {
			return namedFilter(expr, fields[0], op, strings.Join(fields[2:], " "))
		}
	}
	for i := 0; i < len(expr); i++ {
		for _, tok := range filterTokens {
			if !strings.HasPrefix(expr[i:], tok) {
				continue
			}
			op, err := cypher.ParseOp(tok)
			if err != nil {
				return cypher.Predicate{}, err
			}
			field, raw := strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+len(tok):])
			if field == "" {
				return cypher.Predicate{}, fmt.Errorf("filter %q has no attribute", expr)
			}
			return cypher.Predicate{Field: field, Op: op, Value: filterValue(raw)}, nil
		}
	}
	return cypher.Predicate{}, fmt.Errorf("filter %q has no operator", expr)
}

func namedFilter(expr, field string, op cypher.Op, raw string) (cypher.Predicate, error) {
	pred := cypher.Predicate{Field: field, Op: op}
	switch op {
	case cypher.IsNull, cypher.IsNotNull:
		if raw != "" {
			return cypher.Predicate{}, fmt.Errorf("filter %q: %s takes no value", expr, op)
		}
	case cypher.In:
		var values []any
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, filterValue(v))
			}
		}
		if len(values) == 0 {
			return cypher.Predicate{}, fmt.Errorf("filter %q has no values", expr)
		}
		pred.Value = values
	default:
		if raw == "" {
			return cypher.Predicate{}, fmt.Errorf("filter %q has no value", expr)
		}
		pred.Value = filterValue(raw)
	}
	return pred, nil
}

// filterValue reads numbers and booleans as such; anything else is a string.
func filterValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
