package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pagecheck/internal/testutil"
)

// projectRoot returns the project root directory. Tests run from the
// package directory, but the demo scenarios live at the root.
func projectRoot() string {
	root, _ := filepath.Abs("../..")
	return root
}

func loadDemoScenarios(t *testing.T) []*Scenario {
	t.Helper()
	files, err := FindScenarioFiles([]string{filepath.Join(projectRoot(), "testdata", "scenarios")}, "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	scenarios := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := LoadScenario(f)
		require.NoError(t, err, "failed to load %s", f)
		scenarios = append(scenarios, sc)
	}
	return scenarios
}

// TestDemoScenarios runs the shipped scenarios against the scripted demo
// pages. Each must pass.
func TestDemoScenarios(t *testing.T) {
	for _, sc := range loadDemoScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			assert.NotEmpty(t, sc.Description, "scenario should have description")

			l := testutil.NewLauncher(nil)
			res := NewRunner(l, testConfig()).Run(context.Background(), sc)

			assert.True(t, res.Passed, "step %d (%s): %s: %s", res.StepIndex, res.FailedStep, res.Code, res.Message)
			assert.Equal(t, len(sc.Steps), res.StepsRun)
			assert.Zero(t, l.OpenPages())
		})
	}
}

func TestDemoScenarios_Golden(t *testing.T) {
	scenarios := loadDemoScenarios(t)

	unmocked := *scenarios[0]
	unmocked.Name = "flashcard_add_card_unmocked"
	unmocked.Mocks = nil
	scenarios = append(scenarios, &unmocked)

	cfg := testConfig()
	cfg.Parallel = 4
	results := NewRunner(testutil.NewLauncher(nil), cfg).RunAll(context.Background(), scenarios)

	AssertGolden(t, "demo_results", results)
}
