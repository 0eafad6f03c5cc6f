package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/pagecheck/internal/browser"
	"github.com/roach88/pagecheck/internal/mock"
	"github.com/roach88/pagecheck/internal/selector"
)

// ErrorCode categorizes scenario failures.
type ErrorCode string

const (
	// ErrCodeDuplicateName indicates a selector name was registered twice.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeUnknownSelector indicates a step referenced an unregistered name.
	ErrCodeUnknownSelector ErrorCode = "UNKNOWN_SELECTOR"

	// ErrCodeUnhandledRequest indicates page script called an endpoint with no mock route.
	ErrCodeUnhandledRequest ErrorCode = "UNHANDLED_REQUEST"

	// ErrCodeNavigationTimeout indicates a page did not finish loading in time.
	ErrCodeNavigationTimeout ErrorCode = "NAVIGATION_TIMEOUT"

	// ErrCodeElementNotFound indicates the element never appeared.
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"

	// ErrCodeElementNotInteractable indicates the element exists but is hidden,
	// disabled, or refused the action.
	ErrCodeElementNotInteractable ErrorCode = "ELEMENT_NOT_INTERACTABLE"

	// ErrCodeAssertionTimeout indicates a condition did not hold before the timeout.
	ErrCodeAssertionTimeout ErrorCode = "ASSERTION_TIMEOUT"

	// ErrCodeScenarioTimeout indicates the scenario deadline passed or the run was cancelled.
	ErrCodeScenarioTimeout ErrorCode = "SCENARIO_TIMEOUT"

	// ErrCodeInvalidScenario indicates a malformed scenario definition.
	ErrCodeInvalidScenario ErrorCode = "INVALID_SCENARIO"

	// ErrCodeBrowser covers engine failures outside the categories above.
	ErrCodeBrowser ErrorCode = "BROWSER_ERROR"
)

// Error is a scenario failure with the context needed to debug it.
type Error struct {
	Code     ErrorCode
	Message  string
	Selector string // selector name, when the failure concerns an element
	Expected string // rendered expected value
	Observed string // rendered last observed value
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Expected != "" || e.Observed != "" {
		msg += fmt.Sprintf(" (expected %s, observed %s)", e.Expected, e.Observed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf classifies err. Typed errors keep their code; sentinels from the
// selector, mock and browser packages map to their category; context
// expiry is a scenario timeout; anything else is a browser error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, selector.ErrDuplicateName):
		return ErrCodeDuplicateName
	case errors.Is(err, selector.ErrUnknownSelector):
		return ErrCodeUnknownSelector
	case errors.Is(err, mock.ErrUnhandledRequest):
		return ErrCodeUnhandledRequest
	}
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	switch {
	case errors.Is(err, browser.ErrNavigationTimeout):
		return ErrCodeNavigationTimeout
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeScenarioTimeout
	}
	return ErrCodeBrowser
}

// IsSetupError reports whether code is a scenario definition bug rather
// than a runtime observation.
func IsSetupError(code ErrorCode) bool {
	switch code {
	case ErrCodeDuplicateName, ErrCodeUnknownSelector, ErrCodeInvalidScenario:
		return true
	}
	return false
}

func newScenarioTimeout(ctx context.Context) *Error {
	msg := "scenario deadline exceeded"
	if errors.Is(ctx.Err(), context.Canceled) {
		msg = "scenario cancelled"
	}
	return &Error{Code: ErrCodeScenarioTimeout, Message: msg, Err: ctx.Err()}
}
