package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pagecheck/internal/selector"
)

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, "login.yaml", `
name: login_requires_email
description: "Submitting without an email shows an error"
timeout: 10s
selectors:
  - name: password
    strategy: attribute
    value: name=password
  - name: submit
    value: "button[type='submit']"
mocks:
  - method: get
    url: "http://api/languages"
    json: [{_id: "1", name: "English"}]
passthrough:
  - "http://cdn.example.com/**"
steps:
  - navigate: /auth/login
  - fill: password
    value: TestPassword123
  - click: submit
    timeout: 250
`)

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "login_requires_email", sc.Name)
	assert.Equal(t, path, sc.Path)
	assert.Equal(t, 10*time.Second, sc.ScenarioTimeout())
	assert.Len(t, sc.Selectors, 2)
	assert.Len(t, sc.Steps, 3)
	assert.Equal(t, 250*time.Millisecond, sc.Steps[2].StepTimeout())

	reg, tbl, err := sc.Build()
	require.NoError(t, err)
	sel, err := reg.Resolve("password")
	require.NoError(t, err)
	assert.Equal(t, selector.StrategyAttribute, sel.Strategy)

	routes := tbl.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, "application/json", routes[0].ContentType)
	assert.JSONEq(t, `[{"_id":"1","name":"English"}]`, string(routes[0].Body))
}

func TestLoadScenario_CUE(t *testing.T) {
	path := writeScenario(t, "editor.cue", `
name: "editor"
_api: "http://localhost:5000"
selectors: [{name: "title", strategy: "attribute", value: "name=title"}]
mocks: [{method: "GET", url: _api + "/video/video", json: []}]
steps: [
	{navigate: "/admin/Lesson"},
	{fill: "title", value: "hello"},
]
`)

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "editor", sc.Name)
	require.Len(t, sc.Mocks, 1)
	assert.Equal(t, "http://localhost:5000/video/video", sc.Mocks[0].URL)
	assert.Equal(t, "hello", sc.Steps[1].Value)
}

func TestLoadScenario_CUENotConcrete(t *testing.T) {
	path := writeScenario(t, "open.cue", `
name: string
steps: [{navigate: "/"}]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not concrete")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, "bad.yaml", `
name: typo
stepz:
  - navigate: /
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		code    ErrorCode
	}{
		{
			name:    "missing name",
			content: "steps:\n  - navigate: /\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			content: "name: x\n",
			wantErr: "steps list is required",
		},
		{
			name: "duplicate selector",
			content: `name: x
selectors:
  - {name: a, value: "#a"}
  - {name: a, value: "#b"}
steps:
  - navigate: /
`,
			wantErr: "selectors[1]",
			code:    ErrCodeDuplicateName,
		},
		{
			name: "unknown selector",
			content: `name: x
steps:
  - click: ghost
`,
			wantErr: "steps[0]",
			code:    ErrCodeUnknownSelector,
		},
		{
			name: "two verbs",
			content: `name: x
selectors:
  - {name: a, value: "#a"}
steps:
  - {click: a, fill: a}
`,
			wantErr: "expected exactly one",
		},
		{
			name: "empty step",
			content: `name: x
steps:
  - value: hi
`,
			wantErr: "step has no action",
		},
		{
			name: "select without option",
			content: `name: x
selectors:
  - {name: a, value: "#a"}
steps:
  - select: a
`,
			wantErr: "option is required",
		},
		{
			name: "assert_text without expected",
			content: `name: x
selectors:
  - {name: a, value: "#a"}
steps:
  - assert_text: a
`,
			wantErr: "expected is required",
		},
		{
			name: "negative count",
			content: `name: x
selectors:
  - {name: a, value: "#a"}
steps:
  - assert_count: a
    count: -1
`,
			wantErr: "non-negative",
		},
		{
			name: "assert_attribute without attr",
			content: `name: x
selectors:
  - {name: a, value: "#a"}
steps:
  - assert_attribute: a
    expected: text
`,
			wantErr: "attr is required",
		},
		{
			name: "bad strategy",
			content: `name: x
selectors:
  - {name: a, strategy: xpath, value: "//a"}
steps:
  - navigate: /
`,
			wantErr: "selectors[0]",
		},
		{
			name: "mock body and json",
			content: `name: x
mocks:
  - {method: GET, url: "http://a/b", body: "x", json: {a: 1}}
steps:
  - navigate: /
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "mock bad status",
			content: `name: x
mocks:
  - {method: GET, url: "http://a/b", status: 700}
steps:
  - navigate: /
`,
			wantErr: "mocks[0]",
		},
		{
			name:    "negative timeout",
			content: "name: x\ntimeout: -5\nsteps:\n  - navigate: /\n",
			wantErr: "negative duration",
		},
		{
			name:    "bad timeout",
			content: "name: x\ntimeout: soon\nsteps:\n  - navigate: /\n",
			wantErr: "invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, "s.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.code != "" {
				assert.Equal(t, tt.code, CodeOf(err))
			}
		})
	}
}

func TestStep_String(t *testing.T) {
	expected := "text"
	count := 2
	tests := []struct {
		step Step
		want string
	}{
		{Step{Navigate: "/auth/login"}, "navigate /auth/login"},
		{Step{Fill: "password", Value: "x"}, `fill password "x"`},
		{Step{Click: "submit"}, "click submit"},
		{Step{Select: "lang", Option: "en"}, `select lang "en"`},
		{Step{AssertText: "err", Expected: &expected}, `assert_text err "text"`},
		{Step{AssertCount: "cards", Count: &count}, "assert_count cards 2"},
		{Step{AssertAttribute: "password", Attr: "type", Expected: &expected}, `assert_attribute password type="text"`},
		{Step{}, "invalid step"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.String())
	}
}

func TestScenario_BuildIsFreshEachCall(t *testing.T) {
	sc := &Scenario{
		Name:      "x",
		Selectors: []SelectorDef{{Name: "a", Value: "#a"}},
		Steps:     []Step{{Navigate: "/"}},
	}
	reg1, _, err := sc.Build()
	require.NoError(t, err)
	reg2, _, err := sc.Build()
	require.NoError(t, err)

	assert.NotSame(t, reg1, reg2)
	assert.Equal(t, 1, reg2.Len())
}
