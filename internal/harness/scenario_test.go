package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "firewall_blocks_isolated.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "firewall_blocks_isolated", s.Name)
	assert.Equal(t, filepath.Join("testdata", "scenarios"), s.Dir)
	assert.Equal(t, filepath.Join("testdata", "profiles", "allowlist.cue"), s.Profile)
	require.Len(t, s.Steps, 7)
	assert.Equal(t, "server", s.Steps[0].Select)
	assert.Equal(t, "80 01 02 00 02 00 04", s.Steps[1].Send)
	require.NotNil(t, s.Steps[1].Expect)
	assert.Equal(t, "9000", s.Steps[1].Expect.SW)
	assert.Nil(t, s.Steps[1].Expect.Data)
	require.Len(t, s.Assertions, 2)
	assert.Equal(t, AssertSWCount, s.Assertions[1].Type)
	assert.Equal(t, 2, s.Assertions[1].Count)
}

func TestLoadScenario_KeepsSourceNames(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "global_array_visible.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"../../../applets/memclient/checks.go.in"}, s.Sources)
	assert.Equal(t, filepath.Join("..", "applets", "memclient", "checks.go.in"), s.SourcePath(s.Sources[0]))

	// An empty data expectation is kept distinct from no expectation.
	require.NotNil(t, s.Steps[4].Expect.Data)
	assert.Equal(t, "", *s.Steps[4].Expect.Data)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{reset: true}]",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps: [{reset: true}]",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d",
			want: "steps list is required",
		},
		{
			name: "unknown field",
			yaml: "name: n\ndescription: d\nflow: []\nsteps: [{reset: true}]",
			want: "failed to parse YAML",
		},
		{
			name: "two actions",
			yaml: "name: n\ndescription: d\nsteps: [{select: server, reset: true}]",
			want: "exactly one of select, send, reset",
		},
		{
			name: "no action",
			yaml: "name: n\ndescription: d\nsteps: [{expect: {sw: \"9000\"}}]",
			want: "exactly one of select, send, reset",
		},
		{
			name: "malformed command",
			yaml: "name: n\ndescription: d\nsteps: [{send: \"80 10 00\"}]",
			want: "steps[0].send",
		},
		{
			name: "reset with expect",
			yaml: "name: n\ndescription: d\nsteps: [{reset: true, expect: {sw: \"9000\"}}]",
			want: "reset has no response to expect",
		},
		{
			name: "bad expected sw",
			yaml: "name: n\ndescription: d\nsteps: [{select: server, expect: {sw: \"90\"}}]",
			want: "steps[0].expect.sw",
		},
		{
			name: "bad expected data",
			yaml: "name: n\ndescription: d\nsteps: [{select: server, expect: {sw: \"9000\", data: \"0\"}}]",
			want: "steps[0].expect.data",
		},
		{
			name: "missing source",
			yaml: "name: n\ndescription: d\nsources: [missing.go.in]\nsteps: [{reset: true}]",
			want: "source not found: missing.go.in",
		},
		{
			name: "missing profile",
			yaml: "name: n\ndescription: d\nprofile: missing.cue\nsteps: [{reset: true}]",
			want: "profile not found",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{reset: true}]\nassertions: [{type: final_state}]",
			want: `unknown assertion type "final_state"`,
		},
		{
			name: "assertion without type",
			yaml: "name: n\ndescription: d\nsteps: [{reset: true}]\nassertions: [{sw: \"9000\"}]",
			want: "type is required",
		},
		{
			name: "sw_order without sws",
			yaml: "name: n\ndescription: d\nsteps: [{reset: true}]\nassertions: [{type: sw_order}]",
			want: "sws list is required",
		},
		{
			name: "site_hit without contains",
			yaml: "name: n\ndescription: d\nsteps: [{reset: true}]\nassertions: [{type: site_hit}]",
			want: "contains is required",
		},
		{
			name: "negative count",
			yaml: "name: n\ndescription: d\nsteps: [{reset: true}]\nassertions: [{type: sw_count, sw: \"9000\", count: -1}]",
			want: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
