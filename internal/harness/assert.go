package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/pagecheck/internal/browser"
)

// Asserter checks page conditions through a Fixture. Every check polls
// until it holds or its timeout elapses.
type Asserter struct {
	fx      *Fixture
	timeout time.Duration
}

// NewAsserter returns an Asserter that waits up to timeout for each check
// unless the check supplies its own.
func NewAsserter(fx *Fixture, timeout time.Duration) *Asserter {
	return &Asserter{fx: fx, timeout: timeout}
}

// Visible waits for the named element to be present and visible.
func (a *Asserter) Visible(ctx context.Context, name string, timeout time.Duration) error {
	return a.check(ctx, name, timeout, "visible", false, func(loc browser.Locator) (bool, string) {
		n, err := loc.Count()
		if err != nil {
			return false, "error: " + err.Error()
		}
		if n == 0 {
			return false, "absent"
		}
		vis, err := loc.Visible()
		if err != nil {
			return false, "error: " + err.Error()
		}
		if !vis {
			return false, "hidden"
		}
		return true, "visible"
	})
}

// Text waits for the named element's text to equal expected. Both sides
// are NFC normalized, trimmed and have internal whitespace runs collapsed.
func (a *Asserter) Text(ctx context.Context, name, expected string, timeout time.Duration) error {
	want := NormalizeText(expected)
	return a.check(ctx, name, timeout, strconv.Quote(want), false, func(loc browser.Locator) (bool, string) {
		n, err := loc.Count()
		if err != nil {
			return false, "error: " + err.Error()
		}
		if n == 0 {
			return false, "absent"
		}
		got, err := loc.Text()
		if err != nil {
			return false, "error: " + err.Error()
		}
		got = NormalizeText(got)
		return got == want, strconv.Quote(got)
	})
}

// Count waits for exactly expected elements to match the name. Zero is a
// valid expectation, so an absent element is never reported as not found.
func (a *Asserter) Count(ctx context.Context, name string, expected int, timeout time.Duration) error {
	return a.check(ctx, name, timeout, strconv.Itoa(expected), true, func(loc browser.Locator) (bool, string) {
		n, err := loc.Count()
		if err != nil {
			return false, "error: " + err.Error()
		}
		return n == expected, strconv.Itoa(n)
	})
}

// Attribute waits for attribute attr of the named element to equal expected.
func (a *Asserter) Attribute(ctx context.Context, name, attr, expected string, timeout time.Duration) error {
	return a.check(ctx, name, timeout, fmt.Sprintf("%s=%q", attr, expected), false, func(loc browser.Locator) (bool, string) {
		n, err := loc.Count()
		if err != nil {
			return false, "error: " + err.Error()
		}
		if n == 0 {
			return false, "absent"
		}
		got, err := loc.Attribute(attr)
		if err != nil {
			return false, "error: " + err.Error()
		}
		return got == expected, fmt.Sprintf("%s=%q", attr, got)
	})
}

// check polls probe. It reports ELEMENT_NOT_FOUND when the element never
// appeared (unless countOnly), and ASSERTION_TIMEOUT otherwise.
func (a *Asserter) check(ctx context.Context, name string, timeout time.Duration, expected string, countOnly bool,
	probe func(browser.Locator) (bool, string)) error {
	loc, sel, err := a.fx.locate(name)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = a.timeout
	}

	seen := false
	observed := "absent"
	err = a.fx.poll(ctx, timeout, func() bool {
		ok, obs := probe(loc)
		observed = obs
		if obs != "absent" {
			seen = true
		}
		return ok
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, errPollTimeout) {
		return err
	}
	if !seen && !countOnly {
		return &Error{
			Code:     ErrCodeElementNotFound,
			Message:  fmt.Sprintf("%s (%s) never appeared within %s", name, sel, timeout),
			Selector: name,
			Expected: expected,
			Observed: observed,
		}
	}
	return &Error{
		Code:     ErrCodeAssertionTimeout,
		Message:  fmt.Sprintf("%s (%s) did not match within %s", name, sel, timeout),
		Selector: name,
		Expected: expected,
		Observed: observed,
	}
}

// NormalizeText applies NFC, trims the ends and collapses whitespace runs
// to a single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
