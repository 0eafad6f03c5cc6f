package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pagecheck/internal/browser"
	"github.com/roach88/pagecheck/internal/config"
	"github.com/roach88/pagecheck/internal/harness"
	"github.com/roach88/pagecheck/internal/store"
)

// RunOptions holds flags for the run command. Zero values leave the
// configured setting alone.
type RunOptions struct {
	*RootOptions
	Filter         string
	Parallel       int
	BaseURL        string
	Database       string
	ScreenshotsDir string

	// Launcher overrides the Playwright launcher (for testing). It is not
	// closed by the command.
	Launcher browser.Launcher

	// IDs overrides the run ID generator (for testing).
	IDs store.IDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>...",
		Short: "Run scenarios in a browser",
		Long: `Run scenario files against the development server.

Directories are searched recursively for .yaml, .yml and .cue files.
Each scenario gets a fresh page with its own selectors and mock routes.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing path, bad config, browser did not start)

Examples:
  pagecheck run ./scenarios
  pagecheck run ./scenarios --filter "register_*" --parallel 4
  pagecheck run login.yaml --base-url http://localhost:5173
  pagecheck run ./scenarios --db ./pagecheck.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name or file name glob")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "scenarios to run at once (default from config)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for relative navigation")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.ScreenshotsDir, "screenshots", "", "write failure screenshots to this directory")

	return cmd
}

func (o *RunOptions) apply(cfg *config.Config) error {
	if o.Parallel != 0 {
		cfg.Parallel = o.Parallel
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Database != "" {
		cfg.DB = o.Database
	}
	if o.ScreenshotsDir != "" {
		cfg.ScreenshotsDir = o.ScreenshotsDir
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	return nil
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	loaded, err := harness.LoadScenarios(paths, opts.Filter)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return WrapExitError(ExitCommandError, "scenario path not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(loaded) == 0 {
		if formatter.JSON() {
			return formatter.Encode(CLIResponse{Status: "ok", Data: RunReport{Results: []harness.Result{}}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	// Load failures keep their slot so the report follows file order.
	results := make([]harness.Result, len(loaded))
	var (
		scenarios []*harness.Scenario
		slots     []int
	)
	for i, l := range loaded {
		if l.Err != nil {
			logger.Warn("invalid scenario", "path", l.Path, "error", l.Err)
			results[i] = harness.LoadFailure(l.Path, l.Err)
			continue
		}
		scenarios = append(scenarios, l.Scenario)
		slots = append(slots, i)
	}
	formatter.VerboseLog("Found %d scenario file(s), %d loadable", len(loaded), len(scenarios))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	if len(scenarios) > 0 {
		launcher := opts.Launcher
		if launcher == nil {
			pw, err := browser.Launch(browser.Options{
				Browser:  cfg.Browser,
				Headless: cfg.Headless,
				SlowMo:   cfg.SlowMo,
			}, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to launch browser", err)
			}
			defer func() {
				if err := pw.Close(); err != nil {
					logger.Error("error closing browser", "error", err)
				}
			}()
			launcher = pw
		}

		runner := harness.NewRunner(launcher, cfg,
			harness.WithLogger(logger),
			harness.WithObserver(func(sc *harness.Scenario) harness.Observer {
				return harness.LogObserver{Logger: logger, Scenario: sc.Name}
			}),
		)
		for j, r := range runner.RunAll(ctx, scenarios) {
			results[slots[j]] = r
		}
	}

	report := RunReport{Results: results, Summary: harness.Summarize(results)}
	if cfg.DB != "" {
		runID, err := recordRun(ctx, opts, cfg, started, results, logger)
		if err != nil {
			return err
		}
		report.RunID = runID
		formatter.VerboseLog("Recorded run %s in %s", runID, cfg.DB)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: report}
		if report.Summary.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeScenarioFailed,
				Message: fmt.Sprintf("%d scenario(s) failed", report.Summary.Failed),
			}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		WriteReport(cmd.OutOrStdout(), results, opts.Verbose)
	}

	if report.Summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Summary.Failed))
	}
	return nil
}

func recordRun(ctx context.Context, opts *RunOptions, cfg *config.Config, started time.Time,
	results []harness.Result, logger *slog.Logger) (string, error) {
	st, err := store.Open(cfg.DB)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()
	if opts.IDs != nil {
		st.SetIDGenerator(opts.IDs)
	}

	// A cancelled run is still worth recording.
	run, err := st.RecordRun(context.WithoutCancel(ctx), started, cfg.BaseURL, results)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to record run", err)
	}
	logger.Debug("run recorded", "run_id", run.ID, "db", cfg.DB)
	return run.ID, nil
}
