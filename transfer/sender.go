package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Sender streams one source to a listening Receiver.
type Sender struct {
	session
	peer   string
	dialer net.Dialer
}

// NewSender returns a sender that will connect to peer ("host:port").
func NewSender(peer string) *Sender {
	return &Sender{
		session: session{ID: uuid.NewString()},
		peer:    peer,
	}
}

// OpenSource opens path for sending. It fails with ErrInvalidInput when path does not
// name a readable regular file, before any connection is attempted.
func OpenSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidInput, path)
	}
	return f, nil
}

// Send connects to the peer, copies src to it in order, half-closes the write side to
// mark the end and releases the connection. It returns the number of bytes sent.
// Cancelling ctx aborts the dial or the copy.
func (s *Sender) Send(ctx context.Context, src io.Reader) (n int64, err error) {
	if err := s.begin(); err != nil {
		return 0, err
	}
	logger := log.With().Str("session", s.ID).Str("peer", s.peer).Logger()

	logger.Debug().Msg("connecting")
	conn, err := s.dialer.DialContext(ctx, "tcp", s.peer)
	if err != nil {
		return 0, s.fail(fmt.Errorf("%w: %s: %w", ErrConnect, s.peer, err))
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return 0, s.fail(fmt.Errorf("%w: %s: not a TCP connection", ErrConnect, s.peer))
	}
	defer func() {
		if err != nil {
			abort(tcp)
			return
		}
		if cerr := tcp.Close(); cerr != nil {
			err = s.fail(fmt.Errorf("%w: close: %w", ErrTransfer, cerr))
		}
	}()

	stop := context.AfterFunc(ctx, func() { abort(tcp) })
	defer stop()

	s.set(StateTransferring)
	logger.Debug().Msg("sending")

	// Wrapping src hides any WriterTo so every read goes through buf.
	buf := make([]byte, bufferSize)
	out := countingWriter{w: tcp, n: &s.bytes}
	n, err = io.CopyBuffer(out, struct{ io.Reader }{src}, buf)
	if err != nil {
		return n, s.fail(transferError(ctx, "send", err))
	}
	if err := tcp.CloseWrite(); err != nil {
		return n, s.fail(transferError(ctx, "half-close", err))
	}

	s.set(StateClosed)
	logger.Info().Str("size", units.HumanSize(float64(n))).Msg("file sent")
	return n, nil
}

// abort drops the connection with a reset. A plain close would send the same FIN as
// CloseWrite and the receiver would take a truncated stream for a complete one.
func abort(c *net.TCPConn) {
	c.SetLinger(0)
	c.Close()
}

// transferError wraps a stream failure, preferring the caller's cancellation as the cause.
func transferError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		err = multierr.Combine(ctx.Err(), err)
	}
	return fmt.Errorf("%w: %s: %w", ErrTransfer, op, err)
}
