package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/pagecheck/internal/browser"
)

// FakeLauncher hands out FakePages that share one set of Apps.
type FakeLauncher struct {
	// Apps maps URL paths to the page script that builds them.
	Apps map[string]App

	// NavigateDelay makes every navigation take this long. Navigations
	// whose timeout is shorter fail with browser.ErrNavigationTimeout.
	NavigateDelay time.Duration

	// NewPageErr, when set, is returned by NewPage.
	NewPageErr error

	mu     sync.Mutex
	pages  []*FakePage
	closed bool
}

var _ browser.Launcher = (*FakeLauncher)(nil)

// NewLauncher returns a launcher serving apps. A nil map serves DemoApps.
func NewLauncher(apps map[string]App) *FakeLauncher {
	if apps == nil {
		apps = DemoApps()
	}
	return &FakeLauncher{Apps: apps}
}

func (l *FakeLauncher) NewPage(ctx context.Context) (browser.Page, error) {
	if l.NewPageErr != nil {
		return nil, l.NewPageErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &FakePage{launcher: l}
	l.mu.Lock()
	l.pages = append(l.pages, p)
	l.mu.Unlock()
	return p, nil
}

func (l *FakeLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Pages returns every page handed out so far.
func (l *FakeLauncher) Pages() []*FakePage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*FakePage, len(l.pages))
	copy(out, l.pages)
	return out
}

// OpenPages counts pages that were never closed.
func (l *FakeLauncher) OpenPages() int {
	n := 0
	for _, p := range l.Pages() {
		if !p.Closed() {
			n++
		}
	}
	return n
}
