package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pagecheck/internal/browser"
	"github.com/roach88/pagecheck/internal/config"
)

// Runner executes scenarios against pages from a Launcher.
type Runner struct {
	launcher browser.Launcher
	cfg      *config.Config
	observer func(sc *Scenario) Observer
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver attaches a per-scenario network observer.
func WithObserver(fn func(sc *Scenario) Observer) RunnerOption {
	return func(r *Runner) { r.observer = fn }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. A nil cfg uses config.Default().
func NewRunner(launcher browser.Launcher, cfg *config.Config, opts ...RunnerOption) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runner{
		launcher: launcher,
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes sc and always returns a Result; failures are recorded in it
// rather than returned. The scenario's page is closed on every path.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (res Result) {
	res = newResult(sc)
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	logger := r.logger.With("scenario", sc.Name)

	timeout := sc.ScenarioTimeout()
	if timeout <= 0 {
		timeout = r.cfg.ScenarioTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reg, tbl, err := sc.Build()
	if err != nil {
		res.fail(-1, nil, err)
		logger.Warn("scenario setup failed", "error", err)
		return res
	}

	page, err := r.launcher.NewPage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.fail(-1, nil, newScenarioTimeout(ctx))
			logger.Info("scenario ended before page opened", "error", ctx.Err())
			return res
		}
		res.fail(-1, nil, &Error{Code: ErrCodeBrowser, Message: "open page", Err: err})
		logger.Error("could not open page", "error", err)
		return res
	}

	var observer Observer = nopObserver{}
	if r.observer != nil {
		observer = r.observer(sc)
	}
	baseURL := sc.BaseURL
	if baseURL == "" {
		baseURL = r.cfg.BaseURL
	}
	fx, err := NewFixture(page, reg, tbl, FixtureOptions{
		BaseURL:           baseURL,
		NavigationTimeout: r.cfg.NavigationTimeout,
		ActionTimeout:     r.cfg.ActionTimeout,
		SettleTimeout:     r.cfg.SettleTimeout,
		PollInterval:      r.cfg.PollInterval,
		Passthrough:       sc.Passthrough,
		Observer:          observer,
		Logger:            logger,
	})
	if err != nil {
		_ = page.Close()
		res.fail(-1, nil, &Error{Code: ErrCodeBrowser, Message: "create fixture", Err: err})
		return res
	}
	defer func() {
		if err := fx.Close(); err != nil {
			logger.Warn("could not close page", "error", err)
		}
	}()

	res.Status = StatusRunning
	logger.Info("scenario started", "steps", len(sc.Steps))

	asserter := NewAsserter(fx, r.cfg.AssertTimeout)
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if err := r.runStep(ctx, fx, asserter, step); err != nil {
			res.fail(i, step, err)
			r.captureFailure(fx, sc, &res, logger)
			logger.Info("scenario failed", "step", i, "code", res.Code, "message", res.Message)
			return res
		}
		res.StepsRun++
	}

	if err := fx.Err(); err != nil {
		res.fail(len(sc.Steps)-1, &sc.Steps[len(sc.Steps)-1], err)
		r.captureFailure(fx, sc, &res, logger)
		logger.Info("scenario failed", "code", res.Code, "message", res.Message)
		return res
	}

	res.Status = StatusPassed
	res.Passed = true
	logger.Info("scenario passed", "steps", res.StepsRun)
	return res
}

// runStep dispatches one step. A panic inside the browser layer becomes a
// BROWSER_ERROR rather than taking down sibling scenarios.
func (r *Runner) runStep(ctx context.Context, fx *Fixture, a *Asserter, step *Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &Error{Code: ErrCodeBrowser, Message: fmt.Sprintf("panic: %v", p)}
		}
	}()

	kind, target, err := step.Kind()
	if err != nil {
		return &Error{Code: ErrCodeInvalidScenario, Message: err.Error()}
	}
	timeout := step.StepTimeout()

	switch kind {
	case StepNavigate:
		return fx.Open(ctx, target)
	case StepFill:
		return fx.Fill(ctx, target, step.Value)
	case StepClick:
		return fx.Click(ctx, target)
	case StepSelect:
		return fx.Select(ctx, target, step.Option)
	case StepAssertVisible:
		return a.Visible(ctx, target, timeout)
	case StepAssertText:
		return a.Text(ctx, target, deref(step.Expected), timeout)
	case StepAssertCount:
		n := 0
		if step.Count != nil {
			n = *step.Count
		}
		return a.Count(ctx, target, n, timeout)
	case StepAssertAttribute:
		return a.Attribute(ctx, target, step.Attr, deref(step.Expected), timeout)
	}
	return &Error{Code: ErrCodeInvalidScenario, Message: fmt.Sprintf("unknown step kind %q", kind)}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (r *Runner) captureFailure(fx *Fixture, sc *Scenario, res *Result, logger *slog.Logger) {
	if r.cfg.ScreenshotsDir == "" {
		return
	}
	if err := os.MkdirAll(r.cfg.ScreenshotsDir, 0o755); err != nil {
		logger.Warn("could not create screenshots dir", "error", err)
		return
	}
	path := filepath.Join(r.cfg.ScreenshotsDir, unsafeFileChars.ReplaceAllString(sc.Name, "_")+".png")
	if err := fx.Screenshot(path); err != nil {
		logger.Warn("could not capture screenshot", "error", err)
		return
	}
	res.Screenshot = path
}

// RunAll executes scenarios with up to cfg.Parallel running at once.
// Results are returned in input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) []Result {
	results := make([]Result, len(scenarios))

	var g errgroup.Group
	g.SetLimit(max(r.cfg.Parallel, 1))
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			results[i] = r.Run(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
