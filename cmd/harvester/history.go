package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/database"
)

// historyTimeLayout is how run and visit times are printed.
const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [unit]",
		Short: "Show journaled crawl runs",
		Long: `History reads the visit journal written by "harvester crawl".

Without flags it lists runs, newest first, for the given unit or for every
unit. --run prints the visits of one run; --latest prints the visits of the
unit's most recent run.

Examples:
  # List every journaled run
  harvester history

  # List runs of one unit
  harvester history foo

  # Show the visits of the most recent foo run
  harvester history foo --latest

  # Show the visits of run 42
  harvester history --run 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("run", 0, "Show the visits of this run ID")
	cmd.Flags().BoolP("latest", "l", false, "Show the visits of the unit's latest run")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the journal database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	var unit string
	if len(args) == 1 {
		unit = args[0]
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("no crawl history yet (run \"harvester crawl\" first): %w", err)
		}
		return err
	}
	defer db.Close()

	q := historyQuery{unit: unit, runID: runID, latest: latest}
	return showHistory(cmd.Context(), cmd.OutOrStdout(), db, q)
}

// errLatestNeedsUnit is returned for --latest without a unit argument.
var errLatestNeedsUnit = errors.New("--latest requires a unit name")

type historyQuery struct {
	unit   string
	runID  int64
	latest bool
}

func showHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, q historyQuery) error {
	switch {
	case q.runID > 0:
		run, err := db.GetRun(ctx, q.runID)
		if err != nil {
			return err
		}
		return printRun(ctx, out, db, run)

	case q.latest:
		if q.unit == "" {
			return errLatestNeedsUnit
		}
		run, err := db.LatestRun(ctx, q.unit)
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Fprintf(out, "No runs recorded for %s\n", q.unit)
			return nil
		}
		return printRun(ctx, out, db, run)

	default:
		runs, err := db.ListRuns(ctx, q.unit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded")
			return nil
		}
		return printRuns(out, runs)
	}
}

func printRuns(w io.Writer, runs []database.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUNIT\tSTARTED\tELAPSED\tSTATUS\tVISITED\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.Unit, r.StartedAt.Local().Format(historyTimeLayout), runElapsed(r),
			r.Status, r.Stats.Visited, r.Stats.Failed+r.Stats.Invalid, r.Stats.Skipped)
	}
	return tw.Flush()
}

func printRun(ctx context.Context, w io.Writer, db *database.CrawlDB, run *database.RunSummary) error {
	fmt.Fprintf(w, "Run %d: %s (%s)\n", run.ID, run.Unit, run.Status)
	fmt.Fprintf(w, "  Start URL: %s\n", run.StartURL)
	fmt.Fprintf(w, "  Started:   %s\n", run.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(w, "  Elapsed:   %s\n", runElapsed(*run))
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", run.Error)
	}
	fmt.Fprintln(w)

	visits, err := db.ListVisits(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(visits) == 0 {
		fmt.Fprintln(w, "No visits recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tSTATUS\tTYPE\tATTEMPTS\tDURATION\tURL")
	for _, v := range visits {
		status := "-"
		if v.StatusCode != 0 {
			status = fmt.Sprint(v.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			v.Outcome, status, v.PageType, v.Attempts, v.Duration.Round(time.Millisecond), v.URL)
	}
	return tw.Flush()
}

// runElapsed returns the run duration, or "-" while it is still running.
func runElapsed(r database.RunSummary) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
