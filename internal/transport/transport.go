// Package transport carries command APDUs to a card: in-process to a
// simulated platform, or over a websocket to a card served elsewhere.
//
// Every transport processes one command at a time. Concurrent callers are
// serialized, matching a physical card reader.
package transport

import (
	"context"
	"sync"

	"github.com/roach88/cardcheck/internal/card"
)

// Transport exchanges raw command APDUs for responses.
type Transport interface {
	// Transmit sends one command and waits for its response. A non-nil
	// error means the exchange did not happen; card-level failures are
	// reported in the response status word.
	Transmit(ctx context.Context, command []byte) (card.Response, error)

	// Reset resets the card.
	Reset(ctx context.Context) error

	// Name identifies the transport in transcripts.
	Name() string

	Close() error
}

// Local drives an in-process platform.
type Local struct {
	mu sync.Mutex
	p  *card.Platform
}

// NewLocal wraps p. The platform must not be used directly afterwards.
func NewLocal(p *card.Platform) *Local {
	return &Local{p: p}
}

// Transmit implements Transport.
func (l *Local) Transmit(ctx context.Context, command []byte) (card.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return card.Response{}, err
	}
	return l.p.Transmit(command), nil
}

// Reset implements Transport.
func (l *Local) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	l.p.Reset()
	return nil
}

// Name implements Transport.
func (l *Local) Name() string { return "local" }

// Close implements Transport. The platform has nothing to release.
func (l *Local) Close() error { return nil }
