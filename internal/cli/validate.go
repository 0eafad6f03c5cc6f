package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pagecheck/internal/harness"
)

// ValidationEntry is the outcome for one scenario file.
type ValidationEntry struct {
	Path  string            `json:"path"`
	Name  string            `json:"name,omitempty"`
	Valid bool              `json:"valid"`
	Code  harness.ErrorCode `json:"code,omitempty"`
	Error string            `json:"error,omitempty"`
	Steps int               `json:"steps,omitempty"`
	Mocks int               `json:"mocks,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Scenarios []ValidationEntry `json:"scenarios"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>...",
		Short: "Check scenario files without a browser",
		Long: `Load and validate scenario files without starting a browser.

Checks file syntax, required fields, step shapes, selector strategies,
duplicate selector names, steps that reference unregistered selectors,
and mock route patterns.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, filter, cmd)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter scenarios by name or file name glob")

	return cmd
}

func runValidate(opts *RootOptions, paths []string, filter string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := harness.LoadScenarios(paths, filter)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
			return WrapExitError(ExitCommandError, "scenario path not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	formatter.VerboseLog("Found %d scenario file(s)", len(loaded))

	result := ValidationResult{Valid: true, Scenarios: make([]ValidationEntry, 0, len(loaded))}
	for _, l := range loaded {
		entry := ValidationEntry{Path: l.Path}
		if l.Err != nil {
			entry.Code = harness.LoadFailure(l.Path, l.Err).Code
			entry.Error = l.Err.Error()
			result.Valid = false
		} else {
			entry.Name = l.Scenario.Name
			entry.Valid = true
			entry.Steps = len(l.Scenario.Steps)
			entry.Mocks = len(l.Scenario.Mocks)
		}
		result.Scenarios = append(result.Scenarios, entry)
	}

	invalid := 0
	for _, e := range result.Scenarios {
		if !e.Valid {
			invalid++
		}
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if invalid > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeInvalidScenario,
				Message: fmt.Sprintf("%d invalid scenario file(s)", invalid),
			}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Scenarios {
			if e.Valid {
				fmt.Fprintf(w, "✓ %s (%d steps, %d mocks)\n", e.Name, e.Steps, e.Mocks)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", e.Path)
			fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Error)
		}
		fmt.Fprintf(w, "\n%d valid, %d invalid\n", len(result.Scenarios)-invalid, invalid)
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", invalid))
	}
	return nil
}
