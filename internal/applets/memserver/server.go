// Package memserver is a component that allocates an array on command and
// shares read access to it with other components.
//
// Commands:
//
//	INS 01  create isolated array   P1 kind  P2 memory class  data: length (2 bytes)
//	INS 02  create global array     P1 kind  P2 00            data: length (2 bytes)
//
// Each command replaces the previously held array. Other components obtain
// the MemoryAccess capability through the platform and call GetArray. The
// capability hands out the reference to anyone who gets hold of it; whether
// they can read through it is decided by the platform firewall, which only
// lets global arrays through.
package memserver

import (
	"encoding/binary"

	"github.com/roach88/cardcheck/internal/card"
	"github.com/roach88/cardcheck/internal/status"
)

// Instructions.
const (
	InsCreateIsolatedArray byte = 0x01
	InsCreateGlobalArray   byte = 0x02
)

// lengthFieldSize is the size of the length in the command data.
const lengthFieldSize = 2

// MemoryAccess grants access to the array of a Server.
type MemoryAccess interface {
	// GetArray returns the current array, or nil if none has been created.
	GetArray() *card.Array
}

// Server owns at most one live array.
type Server struct {
	array  *card.Array
	access *capability
}

type capability struct {
	server *Server
}

func (c *capability) GetArray() *card.Array {
	return c.server.array
}

// New creates a Server with no array.
func New() *Server {
	s := &Server{}
	s.access = &capability{server: s}
	return s
}

// Process implements card.Applet.
func (s *Server) Process(ctx *card.Context, apdu *card.APDU) {
	if ctx.SelectingApplet() {
		return
	}
	switch apdu.INS() {
	case InsCreateIsolatedArray:
		s.createIsolatedArray(ctx, apdu)
	case InsCreateGlobalArray:
		s.createGlobalArray(ctx, apdu)
	default:
		status.Throw(status.InsNotSupported)
	}
}

// Shareable implements card.ShareableProvider. Every client gets the same
// capability; the platform has already decided the client may ask.
func (s *Server) Shareable(ctx *card.Context, client card.AID, param byte) card.Shareable {
	return s.access
}

// Access returns the capability handed to other components.
func (s *Server) Access() MemoryAccess {
	return s.access
}

func (s *Server) createIsolatedArray(ctx *card.Context, apdu *card.APDU) {
	kind := card.Kind(apdu.P1())
	class := card.MemoryClass(apdu.P2())
	length := readLength(apdu)
	s.array = ctx.MakeArrayIn(kind, length, class)
}

func (s *Server) createGlobalArray(ctx *card.Context, apdu *card.APDU) {
	kind := card.Kind(apdu.P1())
	if apdu.P2() != 0x00 {
		status.Throw(status.WrongP1P2)
	}
	length := readLength(apdu)
	s.array = ctx.MakeGlobalArray(kind, length)
}

// readLength reads the signed 16-bit big-endian length from the command data.
func readLength(apdu *card.APDU) int {
	data := apdu.Data()
	if len(data) != lengthFieldSize {
		status.Throw(status.WrongLength)
	}
	return int(int16(binary.BigEndian.Uint16(data)))
}
