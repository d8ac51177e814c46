package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Receiver accepts exactly one connection and writes everything it carries to a file.
type Receiver struct {
	session
	bind   string
	output string

	// OnListen, when set, is called once the listener is bound and before accepting.
	OnListen func(net.Addr)
}

// NewReceiver returns a receiver listening on bind ("ip:port") and writing to output.
// An empty output means DefaultOutput.
func NewReceiver(bind, output string) *Receiver {
	if output == "" {
		output = DefaultOutput
	}
	return &Receiver{
		session: session{ID: uuid.NewString()},
		bind:    bind,
		output:  output,
	}
}

// Output is the path the payload is written to.
func (r *Receiver) Output() string { return r.output }

// Receive binds, accepts one peer, stops listening and copies the stream into the output
// file until the peer half-closes. There is no internal timeout; cancel ctx to give up.
// On failure the partially written output is left in place.
func (r *Receiver) Receive(ctx context.Context) (int64, error) {
	if err := r.begin(); err != nil {
		return 0, err
	}
	logger := log.With().Str("session", r.ID).Logger()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.bind)
	if err != nil {
		return 0, r.fail(fmt.Errorf("%w: %s: %w", ErrBind, r.bind, err))
	}
	logger.Debug().Str("addr", ln.Addr().String()).Msg("listening")
	if r.OnListen != nil {
		r.OnListen(ln.Addr())
	}

	conn, err := accept(ctx, ln)
	// One peer per session: nobody else is accepted once the first arrives.
	ln.Close()
	if err != nil {
		return 0, r.fail(fmt.Errorf("%w: %w", ErrAccept, err))
	}
	defer conn.Close()
	logger.Debug().Str("peer", conn.RemoteAddr().String()).Msg("peer connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	r.set(StateTransferring)
	n, err := r.copyTo(ctx, conn)
	if err != nil {
		return n, r.fail(err)
	}

	r.set(StateClosed)
	logger.Info().Str("size", units.HumanSize(float64(n))).Str("output", r.output).Msg("file received")
	return n, nil
}

func (r *Receiver) copyTo(ctx context.Context, conn net.Conn) (n int64, err error) {
	f, err := os.Create(r.output)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", ErrTransfer, r.output, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("%w: close %s: %w", ErrTransfer, r.output, cerr)
			} else {
				err = multierr.Append(err, cerr)
			}
		}
	}()

	w := bufio.NewWriterSize(countingWriter{w: f, n: &r.bytes}, bufferSize)
	n, err = io.Copy(w, conn)
	if err != nil {
		return n, transferError(ctx, "receive", err)
	}
	if err := w.Flush(); err != nil {
		return n, transferError(ctx, "flush", err)
	}
	return n, nil
}

// accept waits for the first connection, returning early when ctx ends.
func accept(ctx context.Context, ln net.Listener) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("listener closed: %w", err)
		}
		return nil, err
	}
	return conn, nil
}
