package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardcheck/internal/macro"
	"github.com/roach88/cardcheck/internal/store"
)

// indexText preprocesses text as source into a store at a temporary path.
func indexText(t *testing.T, db, source, text string) {
	t.Helper()
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	res, err := macro.Preprocess(&strings.Builder{}, strings.NewReader(text), macro.Options{Source: source})
	require.NoError(t, err)
	require.NoError(t, st.IndexSource(context.Background(), res))
}

// aliasingText has placeholders on lines 1 and 1025, which share a status word.
func aliasingText() string {
	lines := make([]string, 1025)
	for i := range lines {
		lines[i] = "pad"
	}
	lines[0] = "first(__LINE__)"
	lines[1024] = "far(__LINE__)"
	return strings.Join(lines, "\n") + "\n"
}

func TestDecode_Ambiguous(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	indexText(t, db, "big.in", aliasingText())

	out, err := execute(NewDecodeCommand(textOpts()), "--db", db, "6200")
	require.NoError(t, err)
	assert.Equal(t, "6200  assertion failed at line 0\n  ambiguous: 2 sites\n  big.in:1  first(__LINE__)\n  big.in:1025  far(__LINE__)\n", out)
}

func TestDecode_SourceFilter(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	indexText(t, db, "a.in", "x(__LINE__)\n")
	indexText(t, db, "b.in", "y(__LINE__)\n")

	out, err := execute(NewDecodeCommand(textOpts()), "--db", db, "--source", "b.in", "6200")
	require.NoError(t, err)
	assert.Equal(t, "6200  assertion failed at line 0\n  b.in:1  y(__LINE__)\n", out)
}

func TestDecode_NonAssertionWord(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	indexText(t, db, "a.in", "x(__LINE__)\n")

	out, err := execute(NewDecodeCommand(textOpts()), "--db", db, "6A82", "0x9000")
	require.NoError(t, err)
	assert.Equal(t, "6A82  file or application not found\n9000  success\n", out)
}

func TestDecode_NoSite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	indexText(t, db, "a.in", "x(__LINE__)\n")

	out, err := execute(NewDecodeCommand(textOpts()), "--db", db, "6299")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no indexed site")
}

func TestDecode_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "index.db")
	indexText(t, db, "big.in", aliasingText())

	out, err := execute(NewDecodeCommand(jsonOpts()), "--db", db, "6200", "6A88")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []DecodedWord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)

	assert.True(t, resp.Data[0].Ambiguous)
	require.NotNil(t, resp.Data[0].Line)
	assert.Equal(t, 0, *resp.Data[0].Line)
	require.Len(t, resp.Data[0].Sites, 2)
	assert.Equal(t, 1024, resp.Data[0].Sites[1].Value)

	assert.Equal(t, "referenced data not found", resp.Data[1].Meaning)
	assert.Nil(t, resp.Data[1].Line)
}

func TestDecode_BadStatusWord(t *testing.T) {
	_, err := execute(NewDecodeCommand(textOpts()), "--db", filepath.Join(t.TempDir(), "x.db"), "62")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDecode_MissingStore(t *testing.T) {
	_, err := execute(NewDecodeCommand(textOpts()), "--db", filepath.Join(t.TempDir(), "x.db"), "6200")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "store not found")
}
