package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localpulse/rankgrid-cli/internal/export"
	"github.com/localpulse/rankgrid-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect check run history",
	Long:  "Commands for listing, viewing, exporting, and pruning saved grid check runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved check runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		keyword, _ := cmd.Flags().GetString("keyword")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{Keyword: keyword, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run report as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs export")
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = fmt.Sprintf("rankgrid-%s.xlsx", truncateID(report.ID))
		}

		if err := export.WriteXLSX(report, out); err != nil {
			return eris.Wrap(err, "runs export")
		}

		zap.L().Info("report exported",
			zap.String("run_id", report.ID),
			zap.String("path", out),
		)
		return nil
	},
}

// -- runs prune --

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the given age",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		age, _ := cmd.Flags().GetDuration("older-than")
		n, err := st.PruneOlderThan(ctx, age)
		if err != nil {
			return eris.Wrap(err, "runs prune")
		}

		fmt.Printf("Pruned %d runs.\n", n)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("keyword", "", "filter by keyword")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsExportCmd.Flags().String("out", "", "output path (default rankgrid-<id>.xlsx)")

	runsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete runs older than this (e.g. 720h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKEYWORD\tBUSINESS\tGRID\tCOMPLETION\tVISIBILITY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t----\t----------\t----------\t-------")

	for _, r := range runs {
		business := r.BusinessName
		if len(business) > 30 {
			business = business[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d %s\t%.0f%%\t%.1f\t%s\n",
			truncateID(r.ID),
			r.Keyword,
			business,
			r.GridSize, r.GridSize, r.Shape,
			r.CompletionRate*100,
			r.VisibilityScore,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
