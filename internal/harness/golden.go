package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// goldenResult is the stable subset of a Result. Durations and screenshot
// paths vary between runs and are left out.
type goldenResult struct {
	Scenario   string    `json:"scenario"`
	Status     Status    `json:"status"`
	StepIndex  int       `json:"step_index"`
	FailedStep string    `json:"failed_step,omitempty"`
	Code       ErrorCode `json:"code,omitempty"`
	Expected   string    `json:"expected,omitempty"`
	Observed   string    `json:"observed,omitempty"`
	StepsRun   int       `json:"steps_run"`
}

// AssertGolden compares results against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, results []Result) {
	t.Helper()

	snapshot := make([]goldenResult, len(results))
	for i, r := range results {
		snapshot[i] = goldenResult{
			Scenario:   r.Scenario,
			Status:     r.Status,
			StepIndex:  r.StepIndex,
			FailedStep: r.FailedStep,
			Code:       r.Code,
			Expected:   r.Expected,
			Observed:   r.Observed,
			StepsRun:   r.StepsRun,
		}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}
