package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardcheck/internal/applets/memclient"
	"github.com/roach88/cardcheck/internal/applets/memserver"
	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/status"
)

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, ShareOpen, p.Share)
	require.Len(t, p.Applets, 2)
	assert.Equal(t, Applet{Name: "server", AID: card.MustParseAID("A000000062030101"), Kind: "memserver"}, p.Applets[0])
	assert.Equal(t, "client", p.Applets[1].Name)
	assert.Equal(t, []string{"server"}, p.Applets[1].MayAccess)
}

func TestLoad_Allowlist(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "allowlist.cue"))
	require.NoError(t, err)
	assert.Equal(t, ShareAllowlist, p.Share)
	require.Len(t, p.Applets, 3)
	assert.Equal(t, []string{"server", "client", "outsider"}, []string{p.Applets[0].Name, p.Applets[1].Name, p.Applets[2].Name})

	outsider, ok := p.Lookup("outsider")
	require.True(t, ok)
	assert.Empty(t, outsider.MayAccess)
	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		file string
		code string
	}{
		{"bad_kind.cue", ErrCodeSchema},
		{"bad_aid.cue", ErrCodeSchema},
		{"unknown_peer.cue", ErrCodeReference},
		{"duplicate_aid.cue", ErrCodeReference},
		{"does_not_exist.cue", ErrCodeRead},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))
			require.Error(t, err)
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.code, perr.Code, "error: %v", err)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte("applets: {"), "broken.cue")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeSyntax, perr.Code)
}

func TestParse_UnknownField(t *testing.T) {
	src := `applets: server: {aid: "A000000062030101", kind: "memserver", colour: "red"}`
	_, err := Parse([]byte(src), "extra.cue")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrCodeSchema, perr.Code)
}

func TestError_Format(t *testing.T) {
	assert.Equal(t, "E_PROFILE_READ: boom", (&Error{Code: ErrCodeRead, Message: "boom"}).Error())
}

func TestBuild_InstallsInOrder(t *testing.T) {
	p := Default()
	plat, err := p.Build()
	require.NoError(t, err)
	assert.Equal(t, []card.AID{p.Applets[0].AID, p.Applets[1].AID}, plat.Installed())
	aid, ok := plat.Lookup("client")
	require.True(t, ok)
	assert.Equal(t, p.Applets[1].AID, aid)
}

func TestBuild_AllowlistPolicy(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "allowlist.cue"))
	require.NoError(t, err)
	plat, err := p.Build()
	require.NoError(t, err)

	server, _ := p.Lookup("server")
	client, _ := p.Lookup("client")
	outsider, _ := p.Lookup("outsider")

	require.Equal(t, status.OK, plat.Select(server.AID).SW)
	provision := card.Command{CLA: 0x80, INS: memserver.InsCreateGlobalArray, P1: byte(card.KindByte), Data: []byte{0x00, 0x04}}
	require.Equal(t, status.OK, plat.TransmitCommand(provision).SW)

	inspect := card.Command{CLA: 0x80, INS: memclient.InsInspect, Data: server.AID.Bytes()}

	require.Equal(t, status.OK, plat.Select(client.AID).SW)
	assert.Equal(t, status.OK, plat.TransmitCommand(inspect).SW)

	require.Equal(t, status.OK, plat.Select(outsider.AID).SW)
	assert.Equal(t, status.FileNotFound, plat.TransmitCommand(inspect).SW)
}

func TestSharePolicy_Open(t *testing.T) {
	policy := Default().SharePolicy()
	assert.True(t, policy(card.MustParseAID("A0000000620000"), card.MustParseAID("A0000000629999")))
}

func TestBuild_OptionsOverridePolicy(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "allowlist.cue"))
	require.NoError(t, err)
	plat, err := p.Build(card.WithSharePolicy(card.AllowAll))
	require.NoError(t, err)

	server, _ := p.Lookup("server")
	outsider, _ := p.Lookup("outsider")
	require.Equal(t, status.OK, plat.Select(server.AID).SW)
	provision := card.Command{CLA: 0x80, INS: memserver.InsCreateGlobalArray, P1: byte(card.KindByte), Data: []byte{0x00, 0x04}}
	require.Equal(t, status.OK, plat.TransmitCommand(provision).SW)

	require.Equal(t, status.OK, plat.Select(outsider.AID).SW)
	inspect := card.Command{CLA: 0x80, INS: memclient.InsInspect, Data: server.AID.Bytes()}
	assert.Equal(t, status.OK, plat.TransmitCommand(inspect).SW)
}
