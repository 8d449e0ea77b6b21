package transport

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// request is a client-to-server frame.
type request struct {
	ID      uint64 `cbor:"1,keyasint"`
	Command []byte `cbor:"2,keyasint,omitempty"`
	Reset   bool   `cbor:"3,keyasint,omitempty"`
}

// reply answers the request with the same ID. Error is set when the server
// could not run the exchange at all.
type reply struct {
	ID       uint64 `cbor:"1,keyasint"`
	Response []byte `cbor:"2,keyasint,omitempty"`
	Seq      int64  `cbor:"3,keyasint,omitempty"`
	Cause    string `cbor:"4,keyasint,omitempty"`
	Error    string `cbor:"5,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("transport: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

func marshalFrame(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshalRequest(data []byte) (request, error) {
	var r request
	if err := cbor.Unmarshal(data, &r); err != nil {
		return request{}, fmt.Errorf("transport: unmarshal request: %w", err)
	}
	return r, nil
}

func unmarshalReply(data []byte) (reply, error) {
	var r reply
	if err := cbor.Unmarshal(data, &r); err != nil {
		return reply{}, fmt.Errorf("transport: unmarshal reply: %w", err)
	}
	return r, nil
}
