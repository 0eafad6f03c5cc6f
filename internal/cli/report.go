package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/roach88/pagecheck/internal/harness"
)

// RunReport is the JSON payload of the run command.
type RunReport struct {
	RunID   string           `json:"run_id,omitempty"`
	Results []harness.Result `json:"results"`
	Summary harness.Summary  `json:"summary"`
}

// WriteReport prints one line per scenario, the failure details under each
// failed one, and a summary line. Durations are shown only when verbose.
func WriteReport(w io.Writer, results []harness.Result, verbose bool) {
	for _, r := range results {
		mark := "✓"
		if !r.Passed {
			mark = "✗"
		}
		if verbose {
			fmt.Fprintf(w, "%s %s (%s)\n", mark, r.Scenario, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(w, "%s %s\n", mark, r.Scenario)
		}
		if r.Passed {
			continue
		}
		writeFailure(w, r)
	}

	sum := harness.Summarize(results)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", sum.Passed, sum.Failed, sum.Total)
	if sum.Failed == 0 && sum.Total > 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

func writeFailure(w io.Writer, r harness.Result) {
	if r.StepIndex >= 0 {
		fmt.Fprintf(w, "  step %d: %s\n", r.StepIndex+1, r.FailedStep)
	} else {
		fmt.Fprintln(w, "  before first step")
	}
	fmt.Fprintf(w, "  %s: %s\n", r.Code, r.Message)
	if r.Expected != "" || r.Observed != "" {
		fmt.Fprintf(w, "  expected: %s\n", r.Expected)
		fmt.Fprintf(w, "  observed: %s\n", r.Observed)
	}
	if r.Screenshot != "" {
		fmt.Fprintf(w, "  screenshot: %s\n", r.Screenshot)
	}
}
