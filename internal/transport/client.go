package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/roach88/cardcheck/internal/card"
)

// Remote talks to a Server over a websocket.
type Remote struct {
	mu   sync.Mutex
	url  string
	conn net.Conn
	next uint64
}

// Dial connects to the server at url, e.g. "ws://127.0.0.1:7816/apdu".
func Dial(ctx context.Context, url string) (*Remote, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Remote{url: url, conn: conn}, nil
}

// Transmit implements Transport.
func (r *Remote) Transmit(ctx context.Context, command []byte) (card.Response, error) {
	rep, err := r.roundTrip(ctx, request{Command: command})
	if err != nil {
		return card.Response{}, err
	}
	resp, err := card.ParseResponse(rep.Response)
	if err != nil {
		return card.Response{}, fmt.Errorf("transmit: %w", err)
	}
	resp.Seq = rep.Seq
	if rep.Cause != "" {
		resp.Cause = errors.New(rep.Cause)
	}
	return resp, nil
}

// Reset implements Transport.
func (r *Remote) Reset(ctx context.Context) error {
	_, err := r.roundTrip(ctx, request{Reset: true})
	return err
}

// Name implements Transport.
func (r *Remote) Name() string { return r.url }

// Close implements Transport.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *Remote) roundTrip(ctx context.Context, req request) (reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return reply{}, net.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return reply{}, err
	}

	deadline, _ := ctx.Deadline()
	if err := r.conn.SetDeadline(deadline); err != nil {
		return reply{}, fmt.Errorf("set deadline: %w", err)
	}
	defer r.conn.SetDeadline(time.Time{})

	r.next++
	req.ID = r.next
	out, err := marshalFrame(req)
	if err != nil {
		return reply{}, fmt.Errorf("encode request: %w", err)
	}
	if err := wsutil.WriteClientMessage(r.conn, ws.OpBinary, out); err != nil {
		return reply{}, fmt.Errorf("write request: %w", err)
	}

	msg, err := wsutil.ReadServerBinary(r.conn)
	if err != nil {
		return reply{}, fmt.Errorf("read reply: %w", err)
	}
	rep, err := unmarshalReply(msg)
	if err != nil {
		return reply{}, err
	}
	if rep.ID != req.ID {
		return reply{}, fmt.Errorf("reply %d does not answer request %d", rep.ID, req.ID)
	}
	if rep.Error != "" {
		return reply{}, fmt.Errorf("remote: %s", rep.Error)
	}
	return rep, nil
}
