// Package memclient is a component that reaches a memserver's array through
// its shared capability and reports or verifies what it finds.
//
// Commands:
//
//	INS 10  inspect   data: server AID                      response: kind class length(2)
//	INS 20  check     data: server AID kind expected-length(2)
//
// Reads go through the firewall in the client's own context, so only a
// global array can be inspected; anything else ends the command with
// status.Unknown. The check command runs the assertions in checks.go.in; a
// failure reports the assertion status for the line that failed. A kind of
// zero checks that the server holds no array.
package memclient

//go:generate go run github.com/roach88/cardcheck/cmd/cardcheck preprocess --header -o checks_gen.go checks.go.in

import (
	"encoding/binary"

	"github.com/roach88/cardcheck/internal/applets/memserver"
	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/status"
)

// Instructions.
const (
	InsInspect byte = 0x10
	InsCheck   byte = 0x20
)

// checkTrailer is the kind byte and the two length bytes after the AID.
const checkTrailer = 3

// Client holds no state of its own.
type Client struct{}

// New creates a Client.
func New() *Client {
	return &Client{}
}

// Process implements card.Applet.
func (c *Client) Process(ctx *card.Context, apdu *card.APDU) {
	if ctx.SelectingApplet() {
		return
	}
	switch apdu.INS() {
	case InsInspect:
		c.inspect(ctx, apdu)
	case InsCheck:
		c.check(ctx, apdu)
	default:
		status.Throw(status.InsNotSupported)
	}
}

func (c *Client) inspect(ctx *card.Context, apdu *card.APDU) {
	access := connect(ctx, apdu.Data())
	arr := access.GetArray()
	if arr == nil {
		status.Throw(status.DataNotFound)
	}
	desc := arr.Descriptor(ctx)
	apdu.Send(byte(desc.Kind), byte(desc.Class))
	apdu.Send(binary.BigEndian.AppendUint16(nil, uint16(desc.Length))...)
}

func (c *Client) check(ctx *card.Context, apdu *card.APDU) {
	data := apdu.Data()
	if len(data) < card.MinAIDLength+checkTrailer {
		status.Throw(status.WrongLength)
	}
	split := len(data) - checkTrailer
	access := connect(ctx, data[:split])
	kind := card.Kind(data[split])
	length := int(binary.BigEndian.Uint16(data[split+1:]))

	if kind == 0 {
		checkNoArray(access)
		return
	}
	checkGlobalArray(ctx, access, kind, length)
}

// connect obtains the memory capability of the server named by raw.
func connect(ctx *card.Context, raw []byte) memserver.MemoryAccess {
	if len(raw) < card.MinAIDLength || len(raw) > card.MaxAIDLength {
		status.Throw(status.WrongLength)
	}
	server, ok := ctx.LookupAID(raw)
	if !ok {
		status.Throw(status.FileNotFound)
	}
	access, ok := ctx.Shareable(server, 0).(memserver.MemoryAccess)
	if !ok {
		status.Throw(status.FileNotFound)
	}
	return access
}
