package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execTest(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--profiles", "testdata/profiles"))
	return buf, cmd.Execute()
}

func TestTest_PassingScript(t *testing.T) {
	buf, err := execTest(t, "text", "testdata/scripts/smoke.yaml")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "✓ smoke (3 steps)")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "All scripts passed")
}

func TestTest_FailingScript(t *testing.T) {
	buf, err := execTest(t, "text", "testdata/scripts/failing.yaml")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitFailure, exitErr.Code)

	out := buf.String()
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, `expected "4.9", got "5.0"`)
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_MixedScripts(t *testing.T) {
	buf, err := execTest(t, "text", "testdata/scripts/smoke.yaml", "testdata/scripts/failing.yaml")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "✓ smoke")
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTest_ScriptNotFound(t *testing.T) {
	buf, err := execTest(t, "text", "testdata/scripts/nope.yaml")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)

	assert.Contains(t, buf.String(), "script not found")
}

func TestTest_UnknownProfile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ghost.yaml")
	require.NoError(t, os.WriteFile(script, []byte(`
name: ghost
profile: ghost
steps:
  - op: query
    command: "*IDN?"
`), 0o644))

	buf, err := execTest(t, "text", script)
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCommandError, exitErr.Code)

	assert.Contains(t, buf.String(), "profile not found: ghost")
}

func TestTest_JSON(t *testing.T) {
	buf, err := execTest(t, "json", "testdata/scripts/failing.yaml")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))

	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScript, resp.Error.Code)

	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scripts, 1)
	report := resp.Data.Scripts[0]
	assert.Equal(t, "failing", report.Script)
	assert.False(t, report.Pass)
	require.Len(t, report.Steps, 2)
	assert.Empty(t, report.Steps[0].Failure)
	assert.Contains(t, report.Steps[1].Failure, `expected "4.9"`)
}
