package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with the given args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeOutput(t *testing.T, out string) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	return body
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ssohub version 0.1.0")
}

func TestSimulateCommand_ProcessesLocally(t *testing.T) {
	out, err := runCommand(t, "simulate",
		"--type", "user.lifecycle.create",
		"--subject", "emp-7")
	require.NoError(t, err)

	body := decodeOutput(t, out)
	assert.Equal(t, float64(1), body["matched"])

	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "flow_new_hire_onboarding", results[0].(map[string]any)["flow_id"])

	subject := body["event"].(map[string]any)["subject"].(map[string]any)
	assert.Equal(t, "emp-7", subject["id"])
}

func TestSimulateCommand_MatchesDataPredicates(t *testing.T) {
	out, err := runCommand(t, "simulate",
		"--type", "user.authentication.sso.login.failure",
		"--data", `{"reason":"mfa_not_enrolled"}`)
	require.NoError(t, err)

	body := decodeOutput(t, out)
	assert.Equal(t, float64(1), body["matched"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "flow_mfa_remediation", results[0].(map[string]any)["flow_id"])
}

func TestSimulateCommand_RejectsUnknownType(t *testing.T) {
	_, err := runCommand(t, "simulate", "--type", "user.made.up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user.made.up")
}

func TestSimulateCommand_RejectsBadData(t *testing.T) {
	_, err := runCommand(t, "simulate",
		"--type", "user.lifecycle.create",
		"--data", "not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--data")
}

func TestSimulateCommand_RequiresType(t *testing.T) {
	_, err := runCommand(t, "simulate")
	require.Error(t, err)
}

func TestFlowsCommand_FiltersByType(t *testing.T) {
	out, err := runCommand(t, "flows", "--type", "security")
	require.NoError(t, err)

	body := decodeOutput(t, out)
	assert.Equal(t, float64(1), body["count"])
	flows := body["flows"].([]any)
	require.Len(t, flows, 1)
	assert.Equal(t, "flow_mfa_remediation", flows[0].(map[string]any)["flow_id"])
}

func TestRulesCommand_PrintsDefaultRules(t *testing.T) {
	out, err := runCommand(t, "rules")
	require.NoError(t, err)

	body := decodeOutput(t, out)
	assert.Equal(t, float64(5), body["count"])
}

func TestRootCommand_RejectsBadLogLevel(t *testing.T) {
	_, err := runCommand(t, "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}

func TestRootCommand_RejectsMissingConfigFile(t *testing.T) {
	_, err := runCommand(t, "--config", "/does/not/exist.yaml", "rules")
	require.Error(t, err)
}
