package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Path is the HTTP path the server upgrades on.
const Path = "/apdu"

// Server serves a Transport to websocket clients. Each binary message is one
// CBOR request; the server answers every request before reading the next
// one from that connection. Exchanges from different connections are
// serialized by the underlying transport.
type Server struct {
	card   Transport
	logger *slog.Logger
}

// NewServer serves t.
func NewServer(t Transport, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{card: t, logger: logger}
}

// ServeHTTP upgrades the connection and serves it until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("client connected", "remote", r.RemoteAddr)
	if err := s.serve(r.Context(), conn); err != nil {
		s.logger.Warn("connection ended", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.logger.Info("client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) serve(ctx context.Context, conn net.Conn) error {
	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		if op != ws.OpBinary {
			s.logger.Debug("ignoring non-binary message", "op", op)
			continue
		}

		out, err := marshalFrame(s.handle(ctx, msg))
		if err != nil {
			return fmt.Errorf("encode reply: %w", err)
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpBinary, out); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

func (s *Server) handle(ctx context.Context, msg []byte) reply {
	req, err := unmarshalRequest(msg)
	if err != nil {
		return reply{Error: err.Error()}
	}

	if req.Reset {
		if err := s.card.Reset(ctx); err != nil {
			return reply{ID: req.ID, Error: err.Error()}
		}
		return reply{ID: req.ID}
	}

	resp, err := s.card.Transmit(ctx, req.Command)
	if err != nil {
		return reply{ID: req.ID, Error: err.Error()}
	}
	rep := reply{ID: req.ID, Response: resp.Bytes(), Seq: resp.Seq}
	if resp.Cause != nil {
		rep.Cause = resp.Cause.Error()
	}
	s.logger.Debug("served command", "id", req.ID, "seq", resp.Seq, "sw", resp.SW)
	return rep
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("serving card", "addr", ln.Addr().String(), "path", Path)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
