package harness

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a scenario run.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
)

// Result is the outcome of one scenario execution.
type Result struct {
	Scenario string `json:"scenario"`
	Path     string `json:"path,omitempty"`
	Status   Status `json:"status"`

	// Passed is true only when every step succeeded.
	Passed bool `json:"passed"`

	// StepIndex is the zero-based index of the failing step, or -1 when the
	// failure happened before any step ran (or the scenario passed).
	StepIndex  int    `json:"step_index"`
	FailedStep string `json:"failed_step,omitempty"`

	Code     ErrorCode `json:"code,omitempty"`
	Message  string    `json:"message,omitempty"`
	Expected string    `json:"expected,omitempty"`
	Observed string    `json:"observed,omitempty"`

	// Screenshot is the failure screenshot path, when one was taken.
	Screenshot string `json:"screenshot,omitempty"`

	StepsRun int           `json:"steps_run"`
	Duration time.Duration `json:"duration_ns"`
}

func newResult(sc *Scenario) Result {
	return Result{
		Scenario:  sc.Name,
		Path:      sc.Path,
		Status:    StatusNotStarted,
		StepIndex: -1,
	}
}

// fail records err against the step at index (or -1).
func (r *Result) fail(index int, step *Step, err error) {
	r.Status = StatusFailed
	r.Passed = false
	r.StepIndex = index
	if step != nil {
		r.FailedStep = step.String()
	}
	r.Code = CodeOf(err)
	r.Message = err.Error()

	var he *Error
	if errors.As(err, &he) {
		r.Message = he.Message
		if he.Err != nil && he.Code == ErrCodeBrowser {
			r.Message += ": " + he.Err.Error()
		}
		r.Expected = he.Expected
		r.Observed = he.Observed
	}
}

// LoadFailure is the result reported for a scenario file that could not be
// loaded. The scenario is named after its file.
func LoadFailure(path string, err error) Result {
	r := Result{Scenario: fileStem(path), Path: path}
	r.fail(-1, nil, err)
	if !IsSetupError(r.Code) {
		r.Code = ErrCodeInvalidScenario
	}
	r.Message = err.Error()
	return r
}

// Summary tallies a batch of results.
type Summary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Summarize counts passed and failed results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	s.Total = len(results)
	return s
}
