package card

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AID lengths allowed by ISO 7816-5.
const (
	MinAIDLength = 5
	MaxAIDLength = 16
)

// AID is an application identifier. It holds the raw identifier bytes so it
// can be compared and used as a map key. The zero AID means "no component".
type AID string

// NewAID validates raw and returns it as an AID.
func NewAID(raw []byte) (AID, error) {
	if len(raw) < MinAIDLength || len(raw) > MaxAIDLength {
		return "", fmt.Errorf("AID length %d outside %d..%d", len(raw), MinAIDLength, MaxAIDLength)
	}
	return AID(raw), nil
}

// ParseAID reads an AID from hex, ignoring spaces and colons.
func ParseAID(s string) (AID, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(strings.TrimSpace(s))
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("invalid AID %q: %w", s, err)
	}
	return NewAID(raw)
}

// MustParseAID is ParseAID for constants; it panics on malformed input.
func MustParseAID(s string) AID {
	aid, err := ParseAID(s)
	if err != nil {
		panic(err)
	}
	return aid
}

// Bytes returns a copy of the identifier bytes.
func (a AID) Bytes() []byte {
	return []byte(a)
}

// IsZero reports whether a is the empty AID.
func (a AID) IsZero() bool {
	return a == ""
}

// String renders the AID as upper-case hex.
func (a AID) String() string {
	if a.IsZero() {
		return "<none>"
	}
	return strings.ToUpper(hex.EncodeToString([]byte(a)))
}
