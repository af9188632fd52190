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

	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/monitoring"
	"github.com/sells-group/research-writer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect article run history",
	Long:  "Commands for listing, viewing, and pruning recorded article runs.",
}

// openStore opens the configured run store. It fails when the store is
// disabled since every runs subcommand needs one.
func openStore(cmd *cobra.Command) (store.Store, error) {
	st, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if st == nil {
		return nil, eris.New("run store is disabled (store.driver is \"none\")")
	}
	return st, nil
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List article runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(cmd.Context(), model.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs checkpoints --

var runsCheckpointsCmd = &cobra.Command{
	Use:   "checkpoints <run-id>",
	Short: "List the stage checkpoints of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cps, err := st.ListCheckpoints(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs checkpoints")
		}
		if len(cps) == 0 {
			fmt.Fprintln(os.Stderr, "No checkpoints found.")
			return nil
		}
		return formatCheckpoints(cmd.OutOrStdout(), cps)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours <= 0 {
			hours = 24
		}

		snap, err := monitoring.NewCollector(st).Collect(cmd.Context(), hours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatRunStats(cmd.OutOrStdout(), snap)
		return nil
	},
}

// -- runs prune --

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days, _ := cmd.Flags().GetInt("older-than-days")
		if days <= 0 {
			days = cfg.Store.RetentionDays
		}
		if days <= 0 {
			return eris.New("runs prune: retention window must be positive")
		}

		n, err := st.PruneRuns(cmd.Context(), time.Now().Add(-time.Duration(days)*24*time.Hour))
		if err != nil {
			return eris.Wrap(err, "runs prune")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs older than %d days.\n", n, days)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (discovering, acquiring, complete, failed, ...)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsPruneCmd.Flags().Int("older-than-days", 0, "age cutoff in days (default store.retention_days)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsCheckpointsCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tSTATUS\tSOURCES\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		query := r.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}

		sources := "-"
		if r.Result != nil {
			sources = fmt.Sprintf("%d", len(r.Result.Sources()))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			query,
			r.Status,
			sources,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatCheckpoints writes one line per checkpoint with the stage outcome
// recorded in its snapshot.
func formatCheckpoints(out io.Writer, cps []model.Checkpoint) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tSTATUS\tDURATION\tCREATED\tNOTE")
	_, _ = fmt.Fprintln(w, "-----\t------\t--------\t-------\t----")

	for _, cp := range cps {
		var rec model.Record
		if err := json.Unmarshal(cp.Data, &rec); err != nil {
			return eris.Wrapf(err, "decode checkpoint %s", cp.Stage)
		}
		var res model.StageResult
		for _, s := range rec.Stages {
			if s.Name == cp.Stage {
				res = s
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dms\t%s\t%s\n",
			cp.Stage,
			res.Status,
			res.Duration,
			cp.CreatedAt.Format("2006-01-02 15:04:05"),
			res.Error,
		)
	}
	return w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "  Degraded:\t%d\n", s.Degraded)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", s.FailRate*100)
	_, _ = fmt.Fprintf(w, "Cost:\t$%.4f\n", s.CostUSD)
	if s.AvgTokens > 0 {
		_, _ = fmt.Fprintf(w, "Avg tokens:\t%d\n", s.AvgTokens)
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
