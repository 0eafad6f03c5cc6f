// Package testutil provides an in-memory browser for exercising the
// harness without Playwright.
//
// A FakePage holds a flat list of Elements. Each scripted App builds the
// DOM for one URL path and wires click handlers that mutate it, sometimes
// after a short delay so that assertions have to wait.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pagecheck/internal/browser"
	"github.com/roach88/pagecheck/internal/selector"
)

// Element is one node of the fake DOM.
type Element struct {
	// Match lists the CSS selectors this element answers to. The fake does
	// not parse CSS; a css selector matches when its value is listed here.
	Match []string

	Role     string
	Text     string
	Attrs    map[string]string
	Hidden   bool
	Disabled bool
	Value    string
	Options  []string

	OnClick func(p *FakePage)
}

// App builds the DOM for one page.
type App func(p *FakePage)

// FakePage implements browser.Page over an in-memory DOM.
type FakePage struct {
	launcher *FakeLauncher

	mu          sync.Mutex
	url         string
	elements    []*Element
	version     int
	interceptor browser.InterceptFunc
	requests    []browser.Request
	timeouts    []time.Duration
	closed      bool
}

var _ browser.Page = (*FakePage)(nil)

// Navigate loads target and runs the App registered for its path. Paths
// without an App load as an empty page.
func (p *FakePage) Navigate(ctx context.Context, target string, timeout time.Duration) error {
	if delay := p.launcher.NavigateDelay; delay > 0 {
		wait := min(delay, timeout)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if delay > timeout {
			return fmt.Errorf("goto %s: %w", target, browser.ErrNavigationTimeout)
		}
	}

	decision, _ := p.dispatch(browser.Request{Method: "GET", URL: target, ResourceType: "document"})
	if decision == browser.Abort {
		return fmt.Errorf("goto %s: net::ERR_BLOCKED_BY_CLIENT", target)
	}

	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.url = target
	p.elements = nil
	p.version++
	p.mu.Unlock()

	if app, ok := p.launcher.Apps[u.Path]; ok {
		app(p)
	}
	return nil
}

// Locate returns a lazy locator for sel.
func (p *FakePage) Locate(sel selector.Selector) browser.Locator {
	return &fakeLocator{page: p, sel: sel}
}

func (p *FakePage) Intercept(fn browser.InterceptFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interceptor = fn
	return nil
}

// Settle runs act, then waits for the DOM version to change or timeout.
func (p *FakePage) Settle(act func() error, timeout time.Duration) error {
	p.mu.Lock()
	p.timeouts = append(p.timeouts, timeout)
	p.mu.Unlock()
	before := p.Version()
	if err := act(); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for p.Version() == before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Screenshot writes a placeholder file.
func (p *FakePage) Screenshot(path string) error {
	return os.WriteFile(path, []byte("fake screenshot of "+p.URL()), 0o644)
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("page already closed")
	}
	p.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Version increments on every DOM mutation.
func (p *FakePage) Version() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Requests returns every request the page has issued.
func (p *FakePage) Requests() []browser.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}

// Timeouts returns the timeouts passed to Settle and to element actions,
// in call order.
func (p *FakePage) Timeouts() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.timeouts)
}

// Add appends el to the DOM.
func (p *FakePage) Add(el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el.Attrs == nil {
		el.Attrs = make(map[string]string)
	}
	p.elements = append(p.elements, el)
	p.version++
	return el
}

// Remove detaches el from the DOM.
func (p *FakePage) Remove(el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = slices.DeleteFunc(p.elements, func(e *Element) bool { return e == el })
	p.version++
}

// Update mutates the DOM under the page lock.
func (p *FakePage) Update(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
	p.version++
}

// Later runs fn after d, the way page script reacts after a render tick.
func (p *FakePage) Later(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		if !p.Closed() {
			fn()
		}
	})
}

// Find returns the first element answering to css, or nil.
func (p *FakePage) Find(css string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.elements {
		if slices.Contains(el.Match, css) {
			return el
		}
	}
	return nil
}

// Fetch issues a script request through the interceptor. Requests the
// interceptor lets through get an empty 200, since the fake has no network.
func (p *FakePage) Fetch(method, target string) (*browser.Response, error) {
	decision, resp := p.dispatch(browser.Request{Method: method, URL: target, ResourceType: "fetch"})
	switch decision {
	case browser.Fulfill:
		return resp, nil
	case browser.Abort:
		return nil, fmt.Errorf("fetch %s %s: net::ERR_FAILED", method, target)
	}
	return &browser.Response{Status: 200}, nil
}

func (p *FakePage) dispatch(req browser.Request) (browser.Decision, *browser.Response) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	fn := p.interceptor
	p.mu.Unlock()
	if fn == nil {
		return browser.Continue, nil
	}
	return fn(req)
}

// matches returns the elements matching sel in document order.
// Caller holds p.mu.
func (p *FakePage) matches(sel selector.Selector) []*Element {
	var out []*Element
	for _, el := range p.elements {
		if elementMatches(el, sel) {
			out = append(out, el)
		}
	}
	return out
}

func elementMatches(el *Element, sel selector.Selector) bool {
	switch sel.Strategy {
	case selector.StrategyText:
		return normalize(el.Text) == normalize(sel.Value)
	case selector.StrategyAttribute:
		attr, val, ok := sel.AttributePair()
		got, has := el.Attrs[attr]
		if !ok {
			return has
		}
		return has && got == val
	case selector.StrategyRole:
		role, name := sel.Role()
		if el.Role != role {
			return false
		}
		return name == "" || normalize(el.Text) == name || el.Attrs["aria-label"] == name
	default:
		return slices.Contains(el.Match, sel.Value)
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type fakeLocator struct {
	page *FakePage
	sel  selector.Selector
}

func (l *fakeLocator) Count() (int, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return len(l.page.matches(l.sel)), nil
}

// first runs fn on the first match under the page lock.
func (l *fakeLocator) first(fn func(el *Element) error) error {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	m := l.page.matches(l.sel)
	if len(m) == 0 {
		return fmt.Errorf("no element matches %s", l.sel)
	}
	return fn(m[0])
}

func (l *fakeLocator) Visible() (bool, error) {
	var vis bool
	err := l.first(func(el *Element) error {
		vis = !el.Hidden
		return nil
	})
	return vis, err
}

func (l *fakeLocator) Enabled() (bool, error) {
	var en bool
	err := l.first(func(el *Element) error {
		en = !el.Disabled
		return nil
	})
	return en, err
}

func (l *fakeLocator) Text() (string, error) {
	var text string
	err := l.first(func(el *Element) error {
		text = el.Text
		return nil
	})
	return text, err
}

func (l *fakeLocator) Attribute(name string) (string, error) {
	var val string
	err := l.first(func(el *Element) error {
		val = el.Attrs[name]
		return nil
	})
	return val, err
}

func (l *fakeLocator) Fill(text string, timeout time.Duration) error {
	return l.first(func(el *Element) error {
		l.page.timeouts = append(l.page.timeouts, timeout)
		el.Value = text
		l.page.version++
		return nil
	})
}

func (l *fakeLocator) Select(option string, timeout time.Duration) error {
	return l.first(func(el *Element) error {
		l.page.timeouts = append(l.page.timeouts, timeout)
		if !slices.Contains(el.Options, option) {
			return fmt.Errorf("option %q not found in %s", option, l.sel)
		}
		el.Value = option
		l.page.version++
		return nil
	})
}

// Click runs the element's handler outside the page lock, so handlers
// may mutate the DOM.
func (l *fakeLocator) Click(timeout time.Duration) error {
	var handler func(*FakePage)
	err := l.first(func(el *Element) error {
		l.page.timeouts = append(l.page.timeouts, timeout)
		handler = el.OnClick
		return nil
	})
	if err != nil {
		return err
	}
	if handler != nil {
		handler(l.page)
	}
	return nil
}
