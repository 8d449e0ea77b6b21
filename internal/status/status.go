// Package status defines the 16-bit status words that terminate every card
// command, including the reserved block used to report failed assertions.
//
// # Assertion Block
//
// Codes 0x6200 through 0x65FF (1024 values) mean "assertion failed at line N":
//
//	word = AssertionBase + (line & LineMask)
//
// Lines beyond 1023 alias onto the same block. Masking, not rejecting, is
// deliberate: a failing assertion always reports some location.
//
// # Throwing
//
// Card code signals a status word with Throw, which panics with an
// *Exception. The platform's command boundary recovers it and sends the word
// as the command's terminal result. Nothing after Throw runs.
package status

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Word is a 16-bit command status (SW1 SW2).
type Word uint16

// Line identifies the source line of an assertion call site.
type Line uint16

// ISO 7816-4 status words used by the platform and the components.
const (
	OK                     Word = 0x9000
	WrongLength            Word = 0x6700
	AppletSelectFailed     Word = 0x6999
	SecurityNotSatisfied   Word = 0x6982
	ConditionsNotSatisfied Word = 0x6985
	WrongData              Word = 0x6A80
	FileNotFound           Word = 0x6A82
	DataNotFound           Word = 0x6A88
	WrongP1P2              Word = 0x6B00
	InsNotSupported        Word = 0x6D00
	ClaNotSupported        Word = 0x6E00
	Unknown                Word = 0x6F00
)

// Assertion block layout.
const (
	AssertionBase Word = 0x6200
	LineMask           = 0x3FF
	AssertionLast Word = AssertionBase + LineMask
)

// Assertion encodes a failed assertion at the given line.
func Assertion(line Line) Word {
	return AssertionBase + Word(line&LineMask)
}

// AssertionLine decodes a word from the assertion block.
// Returns false if w is outside the block.
func (w Word) AssertionLine() (Line, bool) {
	if !w.IsAssertion() {
		return 0, false
	}
	return Line(w - AssertionBase), true
}

// IsAssertion reports whether w lies in the assertion block.
func (w Word) IsAssertion() bool {
	return w >= AssertionBase && w <= AssertionLast
}

// SW1 returns the high byte.
func (w Word) SW1() byte { return byte(w >> 8) }

// SW2 returns the low byte.
func (w Word) SW2() byte { return byte(w) }

// String renders the word as four upper-case hex digits, e.g. "6A82".
func (w Word) String() string {
	return fmt.Sprintf("%04X", uint16(w))
}

// Describe returns a short human-readable meaning of w.
func (w Word) Describe() string {
	if line, ok := w.AssertionLine(); ok {
		return fmt.Sprintf("assertion failed at line %d", line)
	}
	switch w {
	case OK:
		return "success"
	case WrongLength:
		return "wrong length"
	case AppletSelectFailed:
		return "applet selection failed"
	case SecurityNotSatisfied:
		return "security status not satisfied"
	case ConditionsNotSatisfied:
		return "conditions of use not satisfied"
	case WrongData:
		return "wrong data"
	case FileNotFound:
		return "file or application not found"
	case DataNotFound:
		return "referenced data not found"
	case WrongP1P2:
		return "wrong parameters P1-P2"
	case InsNotSupported:
		return "instruction not supported"
	case ClaNotSupported:
		return "class not supported"
	case Unknown:
		return "no precise diagnosis"
	}
	return "unrecognized status"
}

// Parse reads a status word from four hex digits. Spaces and a leading "0x"
// are ignored.
func Parse(s string) (Word, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 4 {
		return 0, fmt.Errorf("status word %q: want 4 hex digits", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("status word %q: %w", s, err)
	}
	return Word(b[0])<<8 | Word(b[1]), nil
}

// Exception carries a status word out of card code.
type Exception struct {
	Word Word
}

// Error implements the error interface.
func (e *Exception) Error() string {
	return fmt.Sprintf("status %s: %s", e.Word, e.Word.Describe())
}

// Throw abandons the current command with the given status word.
func Throw(w Word) {
	panic(&Exception{Word: w})
}
