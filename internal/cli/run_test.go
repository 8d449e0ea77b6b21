package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardcheck/internal/store"
)

// writeScenario writes a scenario that provisions a global byte array and
// checks it with a wrong expected length, which fails at a known line.
func writeScenario(t *testing.T, dir, name, wantSW string) string {
	t.Helper()
	checks, err := filepath.Abs(filepath.Join("..", "applets", "memclient", "checks.go.in"))
	require.NoError(t, err)

	body := fmt.Sprintf(`name: %s
description: "length mismatch is reported at its source line"
sources:
  - %s
steps:
  - select: server
  - send: "80 02 02 00 02 00 0A"
    expect: { sw: "9000" }
  - select: client
  - send: "80 20 00 00 0B A0 00 00 00 62 03 01 01 02 00 08"
    expect: { sw: "%s", site: "checks.go.in:19" }
`, name, checks, wantSW)
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun_Passes(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "length_mismatch", "6212")
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(NewRunCommand(textOpts()), "--db", db, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ length_mismatch\n")
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "length_mismatch", runs[0].Name)
	assert.Equal(t, "local", runs[0].Transport)

	exchanges, err := st.ReadTranscript(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, exchanges, 4)
}

func TestRun_Fails(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_expectation", "9000")

	out, err := execute(NewRunCommand(textOpts()), "--ephemeral", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "step 3: expected sw 9000, got sw 6212 (assertion failed at line 18)")
	assert.Contains(t, out, "Summary: 0 passed, 1 failed, 1 total")
}

func TestRun_Ephemeral(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "length_mismatch", "6212")
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(NewRunCommand(textOpts()), "--ephemeral", "--db", db, dir)
	require.NoError(t, err)
	assert.NoFileExists(t, db)
}

func TestRun_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "length_mismatch", "6212")
	golden := filepath.Join(dir, "golden", "length_mismatch.golden")

	out, err := execute(NewRunCommand(textOpts()), "--ephemeral", "--update", file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ length_mismatch (golden updated)")
	require.FileExists(t, golden)

	_, err = execute(NewRunCommand(textOpts()), "--ephemeral", file)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = execute(NewRunCommand(textOpts()), "--ephemeral", file)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "keep_me", "6212")
	writeScenario(t, dir, "skip_me", "9000")

	out, err := execute(NewRunCommand(textOpts()), "--ephemeral", "--filter", "keep_*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "skip_me")
}

func TestRun_EmptyDir(t *testing.T) {
	out, err := execute(NewRunCommand(textOpts()), "--ephemeral", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestRun_MissingPath(t *testing.T) {
	_, err := execute(NewRunCommand(textOpts()), "--ephemeral", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestRun_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))

	out, err := execute(NewRunCommand(textOpts()), "--ephemeral", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestRun_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "length_mismatch", "6212")
	writeScenario(t, dir, "wrong_expectation", "9000")

	out, err := execute(NewRunCommand(jsonOpts()), "--ephemeral", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeRunFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.NotEmpty(t, resp.Data.Scenarios[0].RunID)
}

func TestRun_Remote(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "length_mismatch", "6212")
	url := serveCard(t)

	// The card is reset between scenarios, so the same file passes twice.
	file := filepath.Join(dir, "length_mismatch.yaml")
	out, err := execute(NewRunCommand(textOpts()), "--ephemeral", "--remote", url, file, file)
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 2 passed, 0 failed, 2 total")
}

func TestRun_RemoteUnreachable(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "length_mismatch", "6212")

	_, err := execute(NewRunCommand(textOpts()), "--ephemeral", "--remote", "ws://127.0.0.1:1/apdu", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
