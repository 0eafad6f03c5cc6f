package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fastConfig keeps every wait short so failing scenarios finish quickly.
const fastConfig = `
navigation_timeout: 1s
action_timeout: 300ms
settle_timeout: 20ms
assert_timeout: 500ms
poll_interval: 10ms
scenario_timeout: 5s
parallel: 2
`

// writeConfig writes fastConfig plus extra to a temp pagecheck.yaml.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fastConfig+extra), 0o644))
	return path
}

// demoScenarios is the shipped scenario directory at the project root.
func demoScenarios(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", "scenarios"))
	require.NoError(t, err)
	return dir
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const passingScenario = `
name: login_requires_email
description: email error shows
selectors:
  - name: password
    strategy: attribute
    value: name=password
  - name: submit
    value: "button[type='submit']"
  - name: errors
    strategy: role
    value: alert
steps:
  - navigate: /auth/login
  - fill: password
    value: TestPassword123
  - click: submit
  - assert_text: errors
    expected: Email is required
`

const failingScenario = `
name: login_wrong_message
description: expects the wrong validation message
selectors:
  - name: password
    strategy: attribute
    value: name=password
  - name: submit
    value: "button[type='submit']"
  - name: errors
    strategy: role
    value: alert
steps:
  - navigate: /auth/login
  - fill: password
    value: TestPassword123
  - click: submit
  - assert_text: errors
    expected: Password is required
`

const invalidScenario = `
description: has no name
selectors: []
steps:
  - navigate: /
`

// mixedScenarios writes one passing, one failing and one invalid scenario.
func mixedScenarios(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeScenario(t, dir, "a_pass.yaml", passingScenario)
	writeScenario(t, dir, "b_fail.yaml", failingScenario)
	writeScenario(t, dir, "c_invalid.yaml", invalidScenario)
	return dir
}
