package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pagecheck/internal/testutil"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func loginScenario() *Scenario {
	return &Scenario{
		Name: "login_requires_email",
		Selectors: []SelectorDef{
			{Name: "password", Strategy: "attribute", Value: "name=password"},
			{Name: "submit", Value: "button[type='submit']"},
			{Name: "email_error", Strategy: "text", Value: "Email is required"},
		},
		Steps: []Step{
			{Navigate: "/auth/login"},
			{Fill: "password", Value: "TestPassword123"},
			{Click: "submit"},
			{AssertVisible: "email_error"},
		},
	}
}

func TestRunner_PassingScenario(t *testing.T) {
	l := testutil.NewLauncher(nil)
	r := NewRunner(l, testConfig())

	res := r.Run(context.Background(), loginScenario())

	assert.True(t, res.Passed, res.Message)
	assert.Equal(t, StatusPassed, res.Status)
	assert.Equal(t, -1, res.StepIndex)
	assert.Equal(t, 4, res.StepsRun)
	assert.Empty(t, res.Code)
	assert.Positive(t, res.Duration)
	assert.Zero(t, l.OpenPages())
}

func TestRunner_FailureRecordsStep(t *testing.T) {
	sc := loginScenario()
	sc.Steps[3] = Step{AssertText: "email_error", Expected: strPtr("Password is required")}
	l := testutil.NewLauncher(nil)

	res := NewRunner(l, testConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.StepIndex)
	assert.Equal(t, `assert_text email_error "Password is required"`, res.FailedStep)
	assert.Equal(t, ErrCodeAssertionTimeout, res.Code)
	assert.Equal(t, `"Password is required"`, res.Expected)
	assert.Equal(t, `"Email is required"`, res.Observed)
	assert.Equal(t, 3, res.StepsRun)
	assert.Zero(t, l.OpenPages(), "page is closed after a failure")
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	sc := loginScenario()
	sc.Selectors = append(sc.Selectors, SelectorDef{Name: "nope", Value: "#nope"})
	sc.Steps = append([]Step{sc.Steps[0], {Click: "nope"}}, sc.Steps[1:]...)

	res := NewRunner(testutil.NewLauncher(nil), testConfig()).Run(context.Background(), sc)

	assert.Equal(t, 1, res.StepIndex)
	assert.Equal(t, ErrCodeElementNotFound, res.Code)
	assert.Equal(t, 1, res.StepsRun)
}

func TestRunner_SetupErrorBeforePage(t *testing.T) {
	sc := loginScenario()
	sc.Selectors = append(sc.Selectors, SelectorDef{Name: "submit", Value: "#other"})
	l := testutil.NewLauncher(nil)

	res := NewRunner(l, testConfig()).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	assert.Equal(t, ErrCodeDuplicateName, res.Code)
	assert.Equal(t, -1, res.StepIndex)
	assert.Empty(t, res.FailedStep)
	assert.Empty(t, l.Pages(), "no page is opened for a broken definition")
}

func TestRunner_UnknownSelectorAtRuntime(t *testing.T) {
	sc := loginScenario()
	sc.Steps[1] = Step{Fill: "ghost", Value: "x"}

	res := NewRunner(testutil.NewLauncher(nil), testConfig()).Run(context.Background(), sc)

	assert.Equal(t, ErrCodeUnknownSelector, res.Code)
	assert.Equal(t, 1, res.StepIndex)
}

func TestRunner_NewPageError(t *testing.T) {
	l := testutil.NewLauncher(nil)
	l.NewPageErr = errors.New("browser crashed")

	res := NewRunner(l, testConfig()).Run(context.Background(), loginScenario())

	assert.Equal(t, ErrCodeBrowser, res.Code)
	assert.Contains(t, res.Message, "browser crashed")
}

func TestRunner_EndedBeforePageOpens(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		timeout string
		message string
	}{
		{name: "run cancelled", ctx: cancelled, message: "scenario cancelled"},
		{name: "deadline already passed", ctx: context.Background(), timeout: "1ns", message: "scenario deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := loginScenario()
			sc.Timeout = tt.timeout
			l := testutil.NewLauncher(nil)

			res := NewRunner(l, testConfig()).Run(tt.ctx, sc)

			assert.Equal(t, ErrCodeScenarioTimeout, res.Code)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, -1, res.StepIndex)
			assert.Empty(t, l.Pages())
		})
	}
}

func TestRunner_ScenarioTimeout(t *testing.T) {
	sc := loginScenario()
	sc.Timeout = "300ms"
	sc.Selectors = append(sc.Selectors, SelectorDef{Name: "never", Value: "#never"})
	sc.Steps = append(sc.Steps, Step{AssertVisible: "never", Timeout: "10s"})
	l := testutil.NewLauncher(nil)

	start := time.Now()
	res := NewRunner(l, testConfig()).Run(context.Background(), sc)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, ErrCodeScenarioTimeout, res.Code)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, l.OpenPages(), "teardown runs after a timeout")
}

func TestRunner_UnhandledRequest(t *testing.T) {
	sc := &Scenario{
		Name: "flashcard_without_mocks",
		Selectors: []SelectorDef{
			{Name: "language_options", Value: "select[name='language'] option"},
		},
		Steps: []Step{
			{Navigate: "/admin/activities/flashcard"},
			{AssertCount: "language_options", Count: intPtr(2)},
		},
	}

	res := NewRunner(testutil.NewLauncher(nil), testConfig()).Run(context.Background(), sc)

	assert.Equal(t, ErrCodeUnhandledRequest, res.Code)
	assert.Contains(t, res.Message, "GET http://localhost:5000/preferred-language/preferredlanguages")
}

func TestRunner_PassthroughAllowsRequest(t *testing.T) {
	sc := &Scenario{
		Name: "flashcard_passthrough",
		Selectors: []SelectorDef{
			{Name: "load_error", Strategy: "text", Value: "Failed to load language options"},
		},
		Passthrough: []string{"http://localhost:5000/**"},
		Steps: []Step{
			{Navigate: "/admin/activities/flashcard"},
			{AssertVisible: "load_error"},
		},
	}

	res := NewRunner(testutil.NewLauncher(nil), testConfig()).Run(context.Background(), sc)

	// the fake network returns an empty body, which the page reports
	assert.True(t, res.Passed, res.Message)
}

func TestRunner_Idempotent(t *testing.T) {
	l := testutil.NewLauncher(nil)
	r := NewRunner(l, testConfig())

	passing := loginScenario()
	first := r.Run(context.Background(), passing)
	second := r.Run(context.Background(), passing)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, second.Passed)

	failing := loginScenario()
	failing.Steps[3] = Step{AssertCount: "email_error", Count: intPtr(2)}
	first = r.Run(context.Background(), failing)
	second = r.Run(context.Background(), failing)
	assert.Equal(t, StatusFailed, first.Status)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.StepIndex, second.StepIndex)
}

func TestRunner_RecoversPanic(t *testing.T) {
	apps := map[string]testutil.App{
		"/boom": func(p *testutil.FakePage) {
			p.Add(testutil.Button("button.boom", "Boom", func(*testutil.FakePage) { panic("page script crashed") }))
		},
	}
	sc := &Scenario{
		Name:      "panics",
		Selectors: []SelectorDef{{Name: "boom", Value: "button.boom"}},
		Steps:     []Step{{Navigate: "/boom"}, {Click: "boom"}},
	}
	l := testutil.NewLauncher(apps)

	res := NewRunner(l, testConfig()).Run(context.Background(), sc)

	assert.Equal(t, ErrCodeBrowser, res.Code)
	assert.Contains(t, res.Message, "page script crashed")
	assert.Zero(t, l.OpenPages())
}

func TestRunner_ScreenshotOnFailure(t *testing.T) {
	cfg := testConfig()
	cfg.ScreenshotsDir = filepath.Join(t.TempDir(), "shots")
	sc := loginScenario()
	sc.Name = "login / broken"
	sc.Steps[3] = Step{AssertCount: "email_error", Count: intPtr(3)}

	res := NewRunner(testutil.NewLauncher(nil), cfg).Run(context.Background(), sc)

	require.False(t, res.Passed)
	assert.Equal(t, filepath.Join(cfg.ScreenshotsDir, "login_broken.png"), res.Screenshot)
	_, err := os.Stat(res.Screenshot)
	assert.NoError(t, err)
}

func TestRunner_Observer(t *testing.T) {
	obs := &recordingObserver{}
	r := NewRunner(testutil.NewLauncher(nil), testConfig(), WithObserver(func(*Scenario) Observer { return obs }))

	res := r.Run(context.Background(), loginScenario())
	require.True(t, res.Passed, res.Message)
	assert.Contains(t, obs.dispositions(), DispositionPassthrough)
}

func TestRunner_RunAllKeepsOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Parallel = 3
	l := testutil.NewLauncher(nil)

	failing := loginScenario()
	failing.Name = "failing"
	failing.Steps[3] = Step{AssertCount: "email_error", Count: intPtr(5)}
	scenarios := []*Scenario{loginScenario(), failing, loginScenario()}

	results := NewRunner(l, cfg).RunAll(context.Background(), scenarios)

	require.Len(t, results, 3)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "failing", results[1].Scenario)
	assert.False(t, results[1].Passed)
	assert.True(t, results[2].Passed)
	assert.Equal(t, Summary{Passed: 2, Failed: 1, Total: 3}, Summarize(results))
	assert.Zero(t, l.OpenPages())
}
