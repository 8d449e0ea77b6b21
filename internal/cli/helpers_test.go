package cli

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardcheck/internal/profile"
	"github.com/roach88/cardcheck/internal/transport"
)

// execute runs cmd with args and returns stdout and the error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func textOpts() *RootOptions {
	return &RootOptions{Format: "text"}
}

func jsonOpts() *RootOptions {
	return &RootOptions{Format: "json"}
}

// serveCard serves a fresh card built from the default profile and returns
// its websocket URL.
func serveCard(t *testing.T) string {
	t.Helper()
	plat, err := profile.Default().Build()
	require.NoError(t, err)
	srv := httptest.NewServer(transport.NewServer(transport.NewLocal(plat), nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + transport.Path
}
