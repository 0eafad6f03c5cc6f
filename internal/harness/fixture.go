package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pagecheck/internal/browser"
	"github.com/roach88/pagecheck/internal/mock"
	"github.com/roach88/pagecheck/internal/selector"
)

// errPollTimeout is the internal signal that a poll ran out of time.
// Callers translate it into ELEMENT_NOT_FOUND or ASSERTION_TIMEOUT.
var errPollTimeout = errors.New("poll timeout")

// FixtureOptions configures a Fixture.
type FixtureOptions struct {
	BaseURL           string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	SettleTimeout     time.Duration
	PollInterval      time.Duration

	// Passthrough lists URL globs that page script may send to the network.
	Passthrough []string

	Observer Observer
	Logger   *slog.Logger
}

// Fixture owns one browser page for the lifetime of one scenario.
// Actions resolve element names through the scenario's registry; network
// requests are answered from the scenario's route table.
type Fixture struct {
	page      browser.Page
	selectors *selector.Registry
	routes    *mock.Table
	opts      FixtureOptions
	observer  Observer
	logger    *slog.Logger

	mu        sync.Mutex
	unhandled error
	closed    bool
}

// NewFixture wraps page and installs the request interceptor. Routes are in
// place before the first navigation.
func NewFixture(page browser.Page, selectors *selector.Registry, routes *mock.Table, opts FixtureOptions) (*Fixture, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	f := &Fixture{
		page:      page,
		selectors: selectors,
		routes:    routes,
		opts:      opts,
		observer:  opts.Observer,
		logger:    opts.Logger,
	}
	if f.observer == nil {
		f.observer = nopObserver{}
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := page.Intercept(f.intercept); err != nil {
		return nil, fmt.Errorf("install request interceptor: %w", err)
	}
	return f, nil
}

// intercept answers one request: a matching mock route fulfills it, page
// loads and passthrough patterns continue to the network, and any other
// API request is aborted and remembered as the scenario's failure.
func (f *Fixture) intercept(req browser.Request) (browser.Decision, *browser.Response) {
	f.observer.RequestSent(req)

	route, err := f.routes.Match(mock.Request{Method: req.Method, URL: req.URL})
	if err == nil {
		resp := &browser.Response{Status: route.Status, ContentType: route.ContentType, Body: route.Body}
		f.observer.ResponseReceived(req, Exchange{
			Disposition: DispositionMocked,
			Status:      route.Status,
			ContentType: route.ContentType,
		})
		return browser.Fulfill, resp
	}

	if !req.IsAPI() || f.passthrough(req.URL) {
		f.observer.ResponseReceived(req, Exchange{Disposition: DispositionPassthrough})
		return browser.Continue, nil
	}

	f.mu.Lock()
	if f.unhandled == nil {
		f.unhandled = &Error{
			Code:    ErrCodeUnhandledRequest,
			Message: fmt.Sprintf("no mock route for %s %s", req.Method, req.URL),
			Err:     err,
		}
	}
	f.mu.Unlock()
	f.logger.Warn("unhandled request", "method", req.Method, "url", req.URL)
	f.observer.ResponseReceived(req, Exchange{Disposition: DispositionRejected})
	return browser.Abort, nil
}

func (f *Fixture) passthrough(u string) bool {
	for _, p := range f.opts.Passthrough {
		if mock.MatchPattern(p, u) {
			return true
		}
	}
	return false
}

// Err returns the first unhandled request seen by the page, if any.
func (f *Fixture) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unhandled
}

// Open navigates to target, joined to the base URL when relative, and
// blocks until the page has loaded.
func (f *Fixture) Open(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return newScenarioTimeout(ctx)
	}
	u, err := f.resolveURL(target)
	if err != nil {
		return &Error{Code: ErrCodeInvalidScenario, Message: fmt.Sprintf("bad url %q", target), Err: err}
	}
	f.logger.Debug("navigate", "url", u)

	if err := f.page.Navigate(ctx, u, f.opts.NavigationTimeout); err != nil {
		if ctx.Err() != nil {
			return newScenarioTimeout(ctx)
		}
		if errors.Is(err, browser.ErrNavigationTimeout) {
			return &Error{
				Code:     ErrCodeNavigationTimeout,
				Message:  fmt.Sprintf("%s did not load", u),
				Expected: "page loaded within " + f.opts.NavigationTimeout.String(),
				Observed: "url " + f.page.URL(),
				Err:      err,
			}
		}
		if uerr := f.Err(); uerr != nil {
			return uerr
		}
		return &Error{Code: ErrCodeBrowser, Message: fmt.Sprintf("navigate %s", u), Err: err}
	}
	return f.Err()
}

func (f *Fixture) resolveURL(target string) (string, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	if f.opts.BaseURL == "" {
		return "", fmt.Errorf("relative url without base url")
	}
	base, err := url.Parse(f.opts.BaseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// Fill types text into the named element.
func (f *Fixture) Fill(ctx context.Context, name, text string) error {
	return f.act(ctx, "fill", name, func(loc browser.Locator, timeout time.Duration) error {
		return loc.Fill(text, timeout)
	})
}

// Click clicks the named element.
func (f *Fixture) Click(ctx context.Context, name string) error {
	return f.act(ctx, "click", name, func(loc browser.Locator, timeout time.Duration) error {
		return loc.Click(timeout)
	})
}

// Select chooses option in the named select element.
func (f *Fixture) Select(ctx context.Context, name, option string) error {
	return f.act(ctx, "select", name, func(loc browser.Locator, timeout time.Duration) error {
		return loc.Select(option, timeout)
	})
}

// act waits for the element to accept input, performs do inside a settle
// window, and surfaces any unhandled request the action caused.
func (f *Fixture) act(ctx context.Context, verb, name string, do func(browser.Locator, time.Duration) error) error {
	loc, err := f.waitInteractable(ctx, name)
	if err != nil {
		return err
	}
	f.logger.Debug(verb, "selector", name)

	actionTimeout := within(ctx, f.opts.ActionTimeout)
	if actionTimeout <= 0 {
		return newScenarioTimeout(ctx)
	}
	settleTimeout := max(within(ctx, f.opts.SettleTimeout), 0)

	err = f.page.Settle(func() error { return do(loc, actionTimeout) }, settleTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return newScenarioTimeout(ctx)
		}
		return &Error{
			Code:     ErrCodeElementNotInteractable,
			Message:  fmt.Sprintf("%s %s failed", verb, name),
			Selector: name,
			Err:      err,
		}
	}
	return f.Err()
}

// within clamps d to the time left before ctx's deadline.
func within(ctx context.Context, d time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < d {
			return rem
		}
	}
	return d
}

// waitInteractable polls until the element exists, is visible and is
// enabled, or the action timeout elapses.
func (f *Fixture) waitInteractable(ctx context.Context, name string) (browser.Locator, error) {
	loc, sel, err := f.locate(name)
	if err != nil {
		return nil, err
	}

	seen := false
	observed := "no matching element"
	err = f.poll(ctx, f.opts.ActionTimeout, func() bool {
		n, err := loc.Count()
		if err != nil {
			observed = "error: " + err.Error()
			return false
		}
		if n == 0 {
			observed = "no matching element"
			return false
		}
		seen = true
		if vis, err := loc.Visible(); err != nil || !vis {
			observed = "hidden"
			return false
		}
		if en, err := loc.Enabled(); err != nil || !en {
			observed = "disabled"
			return false
		}
		return true
	})
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, errPollTimeout) {
		return nil, err
	}
	if !seen {
		return nil, &Error{
			Code:     ErrCodeElementNotFound,
			Message:  fmt.Sprintf("%s (%s) not found", name, sel),
			Selector: name,
			Expected: "element present",
			Observed: observed,
		}
	}
	return nil, &Error{
		Code:     ErrCodeElementNotInteractable,
		Message:  fmt.Sprintf("%s (%s) cannot accept input", name, sel),
		Selector: name,
		Expected: "visible and enabled",
		Observed: observed,
	}
}

func (f *Fixture) locate(name string) (browser.Locator, selector.Selector, error) {
	sel, err := f.selectors.Resolve(name)
	if err != nil {
		return nil, selector.Selector{}, &Error{
			Code:     ErrCodeUnknownSelector,
			Message:  fmt.Sprintf("selector %q is not registered", name),
			Selector: name,
			Err:      err,
		}
	}
	return f.page.Locate(sel), sel, nil
}

// poll calls probe until it returns true, timeout elapses or ctx ends.
// probe always runs at least once. An unhandled request aborts the poll.
func (f *Fixture) poll(ctx context.Context, timeout time.Duration, probe func() bool) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return newScenarioTimeout(ctx)
		}
		if err := f.Err(); err != nil {
			return err
		}
		if probe() {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errPollTimeout
		}
		select {
		case <-ctx.Done():
			return newScenarioTimeout(ctx)
		case <-ticker.C:
		}
	}
}

// Screenshot captures the page, for failure diagnostics.
func (f *Fixture) Screenshot(path string) error {
	return f.page.Screenshot(path)
}

// Close releases the page. Safe to call more than once.
func (f *Fixture) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()
	return f.page.Close()
}
