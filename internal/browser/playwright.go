package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/roach88/pagecheck/internal/selector"
)

// Options configures the Playwright launcher.
type Options struct {
	Browser  string // chromium | firefox | webkit
	Headless bool
	SlowMo   time.Duration
	Width    int
	Height   int

	// SkipInstall assumes driver and browsers are already present.
	SkipInstall bool
}

// PlaywrightLauncher owns one Playwright driver and one browser process.
// Pages are created in separate browser contexts.
type PlaywrightLauncher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	logger  *slog.Logger
}

// Launch starts Playwright and the configured browser.
func Launch(opts Options, logger *slog.Logger) (*PlaywrightLauncher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !opts.SkipInstall && os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{browserName(opts.Browser)}}); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch browserName(opts.Browser) {
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		bt = pw.Chromium
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch %s: %w", browserName(opts.Browser), err)
	}

	logger.Debug("browser launched", "browser", browserName(opts.Browser), "headless", opts.Headless)
	return &PlaywrightLauncher{pw: pw, browser: b, opts: opts, logger: logger}, nil
}

// NewPage opens a page in a fresh browser context.
func (l *PlaywrightLauncher) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := l.opts.Width, l.opts.Height
	if width == 0 || height == 0 {
		width, height = 1280, 720
	}
	bctx, err := l.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return &playwrightPage{ctx: bctx, page: page, logger: l.logger}, nil
}

// Close shuts down the browser and the driver.
func (l *PlaywrightLauncher) Close() error {
	var errs []error
	if l.browser != nil {
		errs = append(errs, l.browser.Close())
	}
	if l.pw != nil {
		errs = append(errs, l.pw.Stop())
	}
	return errors.Join(errs...)
}

func browserName(s string) string {
	switch strings.ToLower(s) {
	case "firefox", "webkit":
		return strings.ToLower(s)
	}
	return "chromium"
}

type playwrightPage struct {
	ctx    playwright.BrowserContext
	page   playwright.Page
	logger *slog.Logger
}

func (p *playwrightPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout {
			timeout = rem
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %s after %s", ErrNavigationTimeout, url, timeout)
		}
		if strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
			return fmt.Errorf("redirect loop navigating to %s: %w", url, err)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) Locate(sel selector.Selector) Locator {
	var loc playwright.Locator
	switch sel.Strategy {
	case selector.StrategyText:
		loc = p.page.GetByText(sel.Value, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)})
	case selector.StrategyRole:
		role, name := sel.Role()
		var opts playwright.PageGetByRoleOptions
		if name != "" {
			opts.Name = name
		}
		loc = p.page.GetByRole(playwright.AriaRole(role), opts)
	default:
		css, _ := sel.CSS()
		loc = p.page.Locator(css)
	}
	return &playwrightLocator{loc: loc}
}

func (p *playwrightPage) Intercept(fn InterceptFunc) error {
	return p.page.Route("**/*", func(route playwright.Route) {
		req := route.Request()
		decision, resp := fn(Request{
			Method:       req.Method(),
			URL:          req.URL(),
			ResourceType: req.ResourceType(),
		})
		var err error
		switch decision {
		case Fulfill:
			opts := playwright.RouteFulfillOptions{
				Status: playwright.Int(resp.Status),
				Body:   resp.Body,
			}
			if resp.ContentType != "" {
				opts.ContentType = playwright.String(resp.ContentType)
			}
			err = route.Fulfill(opts)
		case Abort:
			err = route.Abort("blockedbyclient")
		default:
			err = route.Continue()
		}
		if err != nil {
			p.logger.Debug("route handling failed", "url", req.URL(), "error", err)
		}
	})
}

// settleArmScript installs a one-shot MutationObserver before an action.
const settleArmScript = `() => {
  window.__pagecheckSettle = new Promise((resolve) => {
    const obs = new MutationObserver(() => { obs.disconnect(); resolve(true); });
    obs.observe(document, {subtree: true, childList: true, attributes: true, characterData: true});
    window.__pagecheckSettleStop = () => { obs.disconnect(); resolve(false); };
  });
}`

// settleWaitScript resolves on the first mutation or after ms.
const settleWaitScript = `(ms) => {
  const p = window.__pagecheckSettle;
  if (!p) return false;
  const stop = window.__pagecheckSettleStop;
  const t = setTimeout(() => stop && stop(), ms);
  return p.then((v) => { clearTimeout(t); return v; });
}`

func (p *playwrightPage) Settle(act func() error, timeout time.Duration) error {
	if _, err := p.page.Evaluate(settleArmScript); err != nil {
		p.logger.Debug("settle arm failed", "error", err)
	}
	if err := act(); err != nil {
		return err
	}
	if timeout <= 0 {
		return nil
	}
	if _, err := p.page.Evaluate(settleWaitScript, timeout.Milliseconds()); err != nil {
		// A navigation destroys the execution context; the page changed.
		p.logger.Debug("settle wait interrupted", "error", err)
	}
	return nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	return err
}

func (p *playwrightPage) Close() error {
	return errors.Join(p.page.Close(), p.ctx.Close())
}

// probeTimeout bounds state reads so a detached element never stalls a poll.
const probeTimeout = 500 * time.Millisecond

type playwrightLocator struct {
	loc playwright.Locator
}

func (l *playwrightLocator) Count() (int, error) {
	return l.loc.Count()
}

func (l *playwrightLocator) Visible() (bool, error) {
	return l.loc.First().IsVisible()
}

func (l *playwrightLocator) Enabled() (bool, error) {
	return l.loc.First().IsEnabled(playwright.LocatorIsEnabledOptions{
		Timeout: playwright.Float(float64(probeTimeout.Milliseconds())),
	})
}

// Text returns the rendered text, so hidden descendants do not count.
func (l *playwrightLocator) Text() (string, error) {
	return l.loc.First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(float64(probeTimeout.Milliseconds())),
	})
}

func (l *playwrightLocator) Attribute(name string) (string, error) {
	return l.loc.First().GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(float64(probeTimeout.Milliseconds())),
	})
}

func (l *playwrightLocator) Fill(text string, timeout time.Duration) error {
	return l.loc.First().Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (l *playwrightLocator) Click(timeout time.Duration) error {
	return l.loc.First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (l *playwrightLocator) Select(option string, timeout time.Duration) error {
	_, err := l.loc.First().SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice(option),
	}, playwright.LocatorSelectOptionOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}
