package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pagecheck/internal/config"
	"github.com/roach88/pagecheck/internal/mock"
	"github.com/roach88/pagecheck/internal/selector"
	"github.com/roach88/pagecheck/internal/testutil"
)

// testConfig keeps every wait short so failing paths finish quickly.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.NavigationTimeout = time.Second
	cfg.ActionTimeout = 300 * time.Millisecond
	cfg.SettleTimeout = 20 * time.Millisecond
	cfg.AssertTimeout = 500 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ScenarioTimeout = 5 * time.Second
	return cfg
}

func fixtureOptions(cfg *config.Config) FixtureOptions {
	return FixtureOptions{
		BaseURL:           cfg.BaseURL,
		NavigationTimeout: cfg.NavigationTimeout,
		ActionTimeout:     cfg.ActionTimeout,
		SettleTimeout:     cfg.SettleTimeout,
		PollInterval:      cfg.PollInterval,
	}
}

type fixtureEnv struct {
	page *testutil.FakePage
	reg  *selector.Registry
	tbl  *mock.Table
	fx   *Fixture
}

// newFixtureEnv opens a fake page over an empty app at "/" and returns a
// fixture bound to fresh tables. Callers add selectors and DOM directly.
func newFixtureEnv(t *testing.T, apps map[string]testutil.App, opts FixtureOptions) *fixtureEnv {
	t.Helper()
	if apps == nil {
		apps = testutil.DemoApps()
	}
	l := testutil.NewLauncher(apps)
	p, err := l.NewPage(context.Background())
	require.NoError(t, err)

	env := &fixtureEnv{
		page: p.(*testutil.FakePage),
		reg:  selector.NewRegistry(),
		tbl:  mock.NewTable(),
	}
	env.fx, err = NewFixture(p, env.reg, env.tbl, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.fx.Close() })
	return env
}

func (e *fixtureEnv) register(t *testing.T, name string, strategy selector.Strategy, value string) {
	t.Helper()
	require.NoError(t, e.reg.Register(name, strategy, value))
}

// codeOf asserts err is a harness error and returns its code.
func codeOf(t *testing.T, err error) ErrorCode {
	t.Helper()
	require.Error(t, err)
	return CodeOf(err)
}
