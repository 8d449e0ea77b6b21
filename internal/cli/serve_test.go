package cli

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardcheck/internal/transport"
)

func TestServe_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runServe(ctx, &ServeOptions{RootOptions: textOpts(), Listen: "127.0.0.1:0"})
	require.NoError(t, err)
}

func TestServe_LogsLastSequenceOnStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logs := &bytes.Buffer{}
	root := &RootOptions{Format: "text", Logger: slog.New(slog.NewTextHandler(logs, nil))}
	err := runServe(ctx, &ServeOptions{RootOptions: root, Listen: "127.0.0.1:0", StartSeq: 41})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "resuming sequence numbers")
	assert.Contains(t, logs.String(), "last_seq=41")
}

func TestServe_ResumesSequence(t *testing.T) {
	srv, clock, err := newCardServer(&ServeOptions{RootOptions: textOpts(), StartSeq: 41})
	require.NoError(t, err)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + transport.Path

	out, err := execute(NewSendCommand(textOpts()), "--url", url, "--select", "server")
	require.NoError(t, err)
	assert.Equal(t, "[42] 00A4040008A000000062030101 -> 9000 success\n", out)
	assert.Equal(t, int64(42), clock.Current())
}

func TestServe_NegativeStartSeq(t *testing.T) {
	err := runServe(context.Background(), &ServeOptions{RootOptions: textOpts(), Listen: "127.0.0.1:0", StartSeq: -1})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--start-seq must not be negative")
}

func TestServe_BadProfile(t *testing.T) {
	err := runServe(context.Background(), &ServeOptions{RootOptions: textOpts(), Listen: "127.0.0.1:0", Profile: "testdata/bad_kind.cue"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load profile")
}

func TestServe_BadAddress(t *testing.T) {
	err := runServe(context.Background(), &ServeOptions{RootOptions: textOpts(), Listen: "not-an-address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestServe_RejectsArgs(t *testing.T) {
	_, err := execute(NewServeCommand(textOpts()), "extra")
	require.Error(t, err)
}
