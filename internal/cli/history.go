package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pagecheck/internal/harness"
	"github.com/roach88/pagecheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Scenario string
	RunID    string
}

// RunSummary is one run with its failed scenarios, as listed by history.
type RunSummary struct {
	store.Run
	Failures []store.ScenarioRecord `json:"failures,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `List runs recorded with "run --db", newest first, with the scenarios
that failed in each.

Examples:
  pagecheck history --db ./pagecheck.db
  pagecheck history --db ./pagecheck.db --scenario flashcard_add_card
  pagecheck history --db ./pagecheck.db --run 0192f0c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum runs (or results) to show, 0 for all")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show one scenario's results across runs")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show every result of one run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		dbPath = cfg.DB
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set db in config")
	}
	// Reading history never creates a database.
	if _, err := os.Stat(dbPath); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.RunID != "":
		return showRun(ctx, st, opts.RunID, formatter, cmd.OutOrStdout())
	case opts.Scenario != "":
		return showScenario(ctx, st, opts.Scenario, opts.Limit, formatter, cmd.OutOrStdout())
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		s := RunSummary{Run: run}
		if run.Failed > 0 {
			records, err := st.ReadResults(ctx, run.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read results", err)
			}
			for _, rec := range records {
				if !rec.Passed {
					s.Failures = append(s.Failures, rec)
				}
			}
		}
		summaries = append(summaries, s)
	}

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: summaries})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		mark := "✓"
		if s.Failed > 0 {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s  %d/%d passed  %s\n", mark, s.ID,
			s.StartedAt.Local().Format(time.DateTime), s.Passed, s.Total, s.Duration.Round(time.Millisecond))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "    %s: %s\n", f.Scenario, f.Code)
		}
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, id string, formatter *OutputFormatter, w io.Writer) error {
	run, err := st.GetRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	records, err := st.ReadResults(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results", err)
	}

	results := make([]harness.Result, len(records))
	for i, rec := range records {
		results[i] = rec.Result
	}
	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: RunReport{
			RunID:   run.ID,
			Results: results,
			Summary: harness.Summarize(results),
		}})
	}
	fmt.Fprintf(w, "Run %s (%s)\n\n", run.ID, run.StartedAt.Local().Format(time.DateTime))
	WriteReport(w, results, formatter.Verbose)
	return nil
}

func showScenario(ctx context.Context, st *store.Store, name string, limit int, formatter *OutputFormatter, w io.Writer) error {
	records, err := st.ScenarioHistory(ctx, name, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read scenario history", err)
	}
	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: records})
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No results recorded for %s.\n", name)
		return nil
	}
	for _, rec := range records {
		if rec.Passed {
			fmt.Fprintf(w, "✓ %s\n", rec.RunID)
			continue
		}
		fmt.Fprintf(w, "✗ %s  step %d: %s  %s\n", rec.RunID, rec.StepIndex+1, rec.FailedStep, rec.Code)
	}
	return nil
}
