package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pagecheck/internal/mock"
	"github.com/roach88/pagecheck/internal/selector"
)

// Scenario is one ordered end-to-end test case.
type Scenario struct {
	// Name uniquely identifies this scenario in reports.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// BaseURL overrides the configured base URL for relative navigation.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// Timeout bounds the whole scenario (Go duration syntax).
	// Empty uses the configured scenario timeout.
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	Selectors []SelectorDef `yaml:"selectors" json:"selectors"`
	Mocks     []MockDef     `yaml:"mocks,omitempty" json:"mocks,omitempty"`

	// Passthrough lists URL globs that page script may call on the real network.
	Passthrough []string `yaml:"passthrough,omitempty" json:"passthrough,omitempty"`

	Steps []Step `yaml:"steps" json:"steps"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-" json:"-"`
}

// SelectorDef registers a logical element name.
type SelectorDef struct {
	Name     string `yaml:"name" json:"name"`
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Value    string `yaml:"value" json:"value"`
}

// MockDef stubs one backend endpoint. Body and JSON are mutually exclusive;
// JSON is marshalled and defaults the content type to application/json.
type MockDef struct {
	Method      string `yaml:"method" json:"method"`
	URL         string `yaml:"url" json:"url"`
	Status      int    `yaml:"status,omitempty" json:"status,omitempty"`
	ContentType string `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Body        string `yaml:"body,omitempty" json:"body,omitempty"`
	JSON        any    `yaml:"json,omitempty" json:"json,omitempty"`
}

// StepKind names a step verb.
type StepKind string

const (
	StepNavigate        StepKind = "navigate"
	StepFill            StepKind = "fill"
	StepClick           StepKind = "click"
	StepSelect          StepKind = "select"
	StepAssertVisible   StepKind = "assert_visible"
	StepAssertText      StepKind = "assert_text"
	StepAssertCount     StepKind = "assert_count"
	StepAssertAttribute StepKind = "assert_attribute"
)

// Step is one harness call. Exactly one verb field is set; the verb's value
// is the URL for navigate and the selector name for everything else.
type Step struct {
	Navigate        string `yaml:"navigate,omitempty" json:"navigate,omitempty"`
	Fill            string `yaml:"fill,omitempty" json:"fill,omitempty"`
	Click           string `yaml:"click,omitempty" json:"click,omitempty"`
	Select          string `yaml:"select,omitempty" json:"select,omitempty"`
	AssertVisible   string `yaml:"assert_visible,omitempty" json:"assert_visible,omitempty"`
	AssertText      string `yaml:"assert_text,omitempty" json:"assert_text,omitempty"`
	AssertCount     string `yaml:"assert_count,omitempty" json:"assert_count,omitempty"`
	AssertAttribute string `yaml:"assert_attribute,omitempty" json:"assert_attribute,omitempty"`

	Value    string  `yaml:"value,omitempty" json:"value,omitempty"`
	Option   string  `yaml:"option,omitempty" json:"option,omitempty"`
	Attr     string  `yaml:"attr,omitempty" json:"attr,omitempty"`
	Expected *string `yaml:"expected,omitempty" json:"expected,omitempty"`
	Count    *int    `yaml:"count,omitempty" json:"count,omitempty"`

	// Timeout overrides the assertion timeout for this step.
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Kind returns the step verb and its target. It fails unless exactly one
// verb is set.
func (s Step) Kind() (StepKind, string, error) {
	verbs := []struct {
		kind   StepKind
		target string
	}{
		{StepNavigate, s.Navigate},
		{StepFill, s.Fill},
		{StepClick, s.Click},
		{StepSelect, s.Select},
		{StepAssertVisible, s.AssertVisible},
		{StepAssertText, s.AssertText},
		{StepAssertCount, s.AssertCount},
		{StepAssertAttribute, s.AssertAttribute},
	}
	var kind StepKind
	var target string
	n := 0
	for _, v := range verbs {
		if v.target != "" {
			kind, target = v.kind, v.target
			n++
		}
	}
	switch n {
	case 0:
		return "", "", fmt.Errorf("step has no action")
	case 1:
		return kind, target, nil
	default:
		return "", "", fmt.Errorf("step has %d actions, expected exactly one", n)
	}
}

// String renders the step the way failure reports show it.
func (s Step) String() string {
	kind, target, err := s.Kind()
	if err != nil {
		return "invalid step"
	}
	switch kind {
	case StepFill:
		return fmt.Sprintf("fill %s %q", target, s.Value)
	case StepSelect:
		return fmt.Sprintf("select %s %q", target, s.Option)
	case StepAssertText:
		return fmt.Sprintf("assert_text %s %q", target, deref(s.Expected))
	case StepAssertCount:
		c := 0
		if s.Count != nil {
			c = *s.Count
		}
		return fmt.Sprintf("assert_count %s %d", target, c)
	case StepAssertAttribute:
		return fmt.Sprintf("assert_attribute %s %s=%q", target, s.Attr, deref(s.Expected))
	}
	return fmt.Sprintf("%s %s", kind, target)
}

// StepTimeout parses the per-step timeout. Zero means "use the default".
func (s Step) StepTimeout() time.Duration {
	d, _ := parseDuration(s.Timeout)
	return d
}

// ScenarioTimeout parses the scenario timeout. Zero means "use the default".
func (s *Scenario) ScenarioTimeout() time.Duration {
	d, _ := parseDuration(s.Timeout)
	return d
}

// Build constructs the scenario's selector registry and mock route table.
// Both are fresh on every call.
func (s *Scenario) Build() (*selector.Registry, *mock.Table, error) {
	reg := selector.NewRegistry()
	for i, def := range s.Selectors {
		st, err := selector.ParseStrategy(def.Strategy)
		if err != nil {
			return nil, nil, fmt.Errorf("selectors[%d]: %w", i, err)
		}
		if err := reg.Register(def.Name, st, def.Value); err != nil {
			return nil, nil, fmt.Errorf("selectors[%d]: %w", i, err)
		}
	}

	tbl := mock.NewTable()
	for i, def := range s.Mocks {
		body, contentType, err := def.payload()
		if err != nil {
			return nil, nil, fmt.Errorf("mocks[%d]: %w", i, err)
		}
		if err := tbl.AddRoute(def.Method, def.URL, def.Status, contentType, body); err != nil {
			return nil, nil, fmt.Errorf("mocks[%d]: %w", i, err)
		}
	}
	return reg, tbl, nil
}

func (m MockDef) payload() ([]byte, string, error) {
	if m.JSON == nil {
		return []byte(m.Body), m.ContentType, nil
	}
	if m.Body != "" {
		return nil, "", fmt.Errorf("body and json are mutually exclusive")
	}
	data, err := json.Marshal(m.JSON)
	if err != nil {
		return nil, "", fmt.Errorf("marshal json body: %w", err)
	}
	ct := m.ContentType
	if ct == "" {
		ct = "application/json"
	}
	return data, ct, nil
}

// LoadScenario reads a scenario file. YAML (.yaml, .yml) is decoded
// strictly, rejecting unknown fields; CUE (.cue) is evaluated and must be
// concrete. The result is validated before it is returned.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		if err := decodeCUE(path, data, &scenario); err != nil {
			return nil, err
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&scenario); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	scenario.Path = path

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func decodeCUE(path string, data []byte, out *Scenario) error {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE scenario is not concrete: %w", err)
	}
	if err := v.Decode(out); err != nil {
		return fmt.Errorf("failed to decode CUE: %w", err)
	}
	return nil
}

// ValidateScenario checks required fields, step shapes and selector
// references, and builds the registry and route table once so definition
// bugs surface before any browser starts.
func ValidateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if _, err := parseDuration(s.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	for i, p := range s.Passthrough {
		if _, err := mock.CompilePattern(p); err != nil {
			return fmt.Errorf("passthrough[%d]: %w", i, err)
		}
	}

	reg, _, err := s.Build()
	if err != nil {
		return err
	}

	for i, step := range s.Steps {
		if err := validateStep(step, reg); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step, reg *selector.Registry) error {
	kind, target, err := step.Kind()
	if err != nil {
		return err
	}
	if _, err := parseDuration(step.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if kind == StepNavigate {
		return nil
	}
	if _, err := reg.Resolve(target); err != nil {
		return err
	}

	switch kind {
	case StepSelect:
		if step.Option == "" {
			return fmt.Errorf("option is required for select")
		}
	case StepAssertText:
		if step.Expected == nil {
			return fmt.Errorf("expected is required for assert_text")
		}
	case StepAssertCount:
		if step.Count == nil {
			return fmt.Errorf("count is required for assert_count")
		}
		if *step.Count < 0 {
			return fmt.Errorf("count must be non-negative for assert_count")
		}
	case StepAssertAttribute:
		if step.Attr == "" {
			return fmt.Errorf("attr is required for assert_attribute")
		}
		if step.Expected == nil {
			return fmt.Errorf("expected is required for assert_attribute")
		}
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	// Bare integers are milliseconds.
	if ms, err := strconv.Atoi(s); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
