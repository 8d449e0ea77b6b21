package card

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cardcheck/internal/status"
)

// Header offsets of a command APDU.
const (
	OffsetCLA   = 0
	OffsetINS   = 1
	OffsetP1    = 2
	OffsetP2    = 3
	OffsetLC    = 4
	OffsetCData = 5
)

// Instructions handled by the platform itself.
const (
	ClaISO       byte = 0x00
	InsSelect    byte = 0xA4
	SelectByName byte = 0x04
)

// ErrMalformedCommand is returned for byte strings that are not a short
// command APDU.
var ErrMalformedCommand = errors.New("malformed command APDU")

// Command is a short (ISO 7816-3) command APDU.
type Command struct {
	CLA, INS, P1, P2 byte
	Data             []byte
	Le               int // expected response length; 0 when absent, 256 for "00"
}

// ParseCommand decodes a short command APDU in any of the four cases.
func ParseCommand(b []byte) (Command, error) {
	if len(b) < 4 {
		return Command{}, fmt.Errorf("%w: %d bytes, header needs 4", ErrMalformedCommand, len(b))
	}
	c := Command{CLA: b[OffsetCLA], INS: b[OffsetINS], P1: b[OffsetP1], P2: b[OffsetP2]}
	body := b[4:]
	switch {
	case len(body) == 0:
		return c, nil
	case len(body) == 1:
		c.Le = shortLe(body[0])
		return c, nil
	}

	lc := int(body[0])
	if lc == 0 {
		return Command{}, fmt.Errorf("%w: extended length not supported", ErrMalformedCommand)
	}
	switch len(body) {
	case 1 + lc:
	case 2 + lc:
		c.Le = shortLe(body[1+lc])
	default:
		return Command{}, fmt.Errorf("%w: Lc %d does not match %d body bytes", ErrMalformedCommand, lc, len(body)-1)
	}
	c.Data = append([]byte(nil), body[1:1+lc]...)
	return c, nil
}

func shortLe(b byte) int {
	if b == 0 {
		return 256
	}
	return int(b)
}

// ParseCommandHex decodes a command written as hex. Spaces are ignored.
func ParseCommandHex(s string) (Command, error) {
	raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if err != nil {
		return Command{}, fmt.Errorf("invalid command hex: %w", err)
	}
	return ParseCommand(raw)
}

// Bytes encodes the command. Data longer than 255 bytes is not representable
// in a short APDU and is truncated.
func (c Command) Bytes() []byte {
	out := []byte{c.CLA, c.INS, c.P1, c.P2}
	if n := len(c.Data); n > 0 {
		if n > 255 {
			n = 255
		}
		out = append(out, byte(n))
		out = append(out, c.Data[:n]...)
	}
	if c.Le > 0 {
		out = append(out, byte(c.Le))
	}
	return out
}

// String renders the command as upper-case hex.
func (c Command) String() string {
	return strings.ToUpper(hex.EncodeToString(c.Bytes()))
}

// SelectCommand builds SELECT by name for aid.
func SelectCommand(aid AID) Command {
	return Command{CLA: ClaISO, INS: InsSelect, P1: SelectByName, P2: 0x00, Data: aid.Bytes()}
}

// IsSelect reports whether c is SELECT by name.
func (c Command) IsSelect() bool {
	return c.CLA&0xFC == ClaISO && c.INS == InsSelect && c.P1 == SelectByName
}

// Response is the card's answer to one command.
type Response struct {
	Data []byte
	SW   status.Word

	// Seq is the platform's logical sequence number for the exchange.
	Seq int64

	// Cause explains an Unknown status raised by an uncaught platform error.
	// It is local diagnostics only and is never part of the wire bytes.
	Cause error
}

// Bytes encodes the response as data followed by SW1 SW2.
func (r Response) Bytes() []byte {
	out := append([]byte(nil), r.Data...)
	return append(out, r.SW.SW1(), r.SW.SW2())
}

// ParseResponse decodes data followed by SW1 SW2.
func ParseResponse(b []byte) (Response, error) {
	if len(b) < 2 {
		return Response{}, fmt.Errorf("response of %d bytes has no status word", len(b))
	}
	n := len(b) - 2
	return Response{
		Data: append([]byte(nil), b[:n]...),
		SW:   status.Word(b[n])<<8 | status.Word(b[n+1]),
	}, nil
}

// APDU is the component's view of the command being processed.
type APDU struct {
	cmd Command
	out []byte
}

// NewAPDU wraps cmd for processing.
func NewAPDU(cmd Command) *APDU {
	return &APDU{cmd: cmd}
}

// CLA returns the class byte.
func (a *APDU) CLA() byte { return a.cmd.CLA }

// INS returns the instruction byte.
func (a *APDU) INS() byte { return a.cmd.INS }

// P1 returns the first parameter byte.
func (a *APDU) P1() byte { return a.cmd.P1 }

// P2 returns the second parameter byte.
func (a *APDU) P2() byte { return a.cmd.P2 }

// Data returns the incoming command data. Its length is the number of bytes
// received.
func (a *APDU) Data() []byte { return a.cmd.Data }

// Command returns the parsed command.
func (a *APDU) Command() Command { return a.cmd }

// Send appends b to the response data.
func (a *APDU) Send(b ...byte) {
	a.out = append(a.out, b...)
}

// Output returns the response data queued so far.
func (a *APDU) Output() []byte { return a.out }
