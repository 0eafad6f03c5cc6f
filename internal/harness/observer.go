package harness

import (
	"context"
	"log/slog"

	"github.com/roach88/pagecheck/internal/browser"
)

// Disposition is what the fixture did with an intercepted request.
type Disposition string

const (
	DispositionMocked      Disposition = "mocked"
	DispositionPassthrough Disposition = "passthrough"
	DispositionRejected    Disposition = "rejected"
)

// Exchange describes the response side of an intercepted request.
// Status and ContentType are only known for mocked requests.
type Exchange struct {
	Disposition Disposition
	Status      int
	ContentType string
}

// Observer receives network events from a fixture. Calls are synchronous
// and come from the browser engine's event goroutine, so implementations
// must be quick and safe for concurrent use.
type Observer interface {
	RequestSent(req browser.Request)
	ResponseReceived(req browser.Request, ex Exchange)
}

// LogObserver writes network events to a slog logger at debug level.
type LogObserver struct {
	Logger   *slog.Logger
	Scenario string
}

func (o LogObserver) RequestSent(req browser.Request) {
	o.Logger.Debug("request sent",
		"scenario", o.Scenario,
		"method", req.Method,
		"url", req.URL,
		"type", req.ResourceType,
	)
}

func (o LogObserver) ResponseReceived(req browser.Request, ex Exchange) {
	level := slog.LevelDebug
	if ex.Disposition == DispositionRejected {
		level = slog.LevelWarn
	}
	o.Logger.Log(context.Background(), level, "response",
		"scenario", o.Scenario,
		"method", req.Method,
		"url", req.URL,
		"disposition", string(ex.Disposition),
		"status", ex.Status,
	)
}

type nopObserver struct{}

func (nopObserver) RequestSent(browser.Request)               {}
func (nopObserver) ResponseReceived(browser.Request, Exchange) {}
