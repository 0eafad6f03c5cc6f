// Package browser defines the browser automation capabilities the harness
// drives, and a Playwright implementation of them.
//
// The harness never talks to Playwright directly. It asks a Launcher for a
// fresh Page per scenario, locates elements through Page.Locate, and
// installs a single request interceptor. Waiting is the harness's job: it
// polls Locator state rather than relying on engine auto-waits.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/pagecheck/internal/selector"
)

// ErrNavigationTimeout is returned by Page.Navigate when the page does not
// reach the loaded state before the deadline.
var ErrNavigationTimeout = errors.New("navigation timeout")

// Launcher hands out isolated pages. Each page gets its own browser
// context, so cookies and storage never leak between scenarios.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and blocks until the load event or timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Locate returns a lazy handle for sel. No lookup happens until a
	// Locator method is called.
	Locate(sel selector.Selector) Locator

	// Intercept routes every network request of the page through fn.
	// Only one interceptor is installed; a second call replaces the first.
	Intercept(fn InterceptFunc) error

	// Settle runs act, then waits until the DOM mutates or timeout elapses.
	// Navigation triggered by act counts as settled.
	Settle(act func() error, timeout time.Duration) error

	// URL returns the current page URL.
	URL() string

	// Screenshot writes a PNG of the viewport to path.
	Screenshot(path string) error

	Close() error
}

// Locator addresses the elements matching one selector. Methods other than
// Count operate on the first match and must only be called when Count > 0.
type Locator interface {
	Count() (int, error)
	Visible() (bool, error)
	Enabled() (bool, error)
	Text() (string, error)
	Attribute(name string) (string, error)

	Fill(text string, timeout time.Duration) error
	Click(timeout time.Duration) error
	Select(option string, timeout time.Duration) error
}

// Request is an intercepted network request.
type Request struct {
	Method       string
	URL          string
	ResourceType string // document, script, fetch, xhr, ...
}

// IsAPI reports whether the request came from page script rather than from
// loading the page itself.
func (r Request) IsAPI() bool {
	return r.ResourceType == "fetch" || r.ResourceType == "xhr"
}

// Response is a canned response returned by an interceptor.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Decision tells the page what to do with an intercepted request.
type Decision int

const (
	// Continue sends the request to the network.
	Continue Decision = iota
	// Fulfill answers with the Response.
	Fulfill
	// Abort fails the request in the page.
	Abort
)

// InterceptFunc decides the fate of one request. It is called from the
// engine's event goroutine and must not block on page operations.
type InterceptFunc func(req Request) (Decision, *Response)
