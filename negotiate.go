package nattraversal

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
)

type forwardResult struct {
	mapping *Mapping
	err     error
}

// ForwardPort locates a gateway and maps an external TCP port to internal, all within
// timeout. On timeout it returns ErrTimedOut at once; the abandoned negotiation
// finishes in the background and any mapping it makes lapses with its lease.
// A non-positive timeout means NegotiationTimeout.
func ForwardPort(ctx context.Context, n Negotiator, internal netip.AddrPort, lease, timeout time.Duration) (*Mapping, error) {
	if n == nil {
		return nil, fmt.Errorf("forward port: nil negotiator")
	}
	if timeout <= 0 {
		timeout = NegotiationTimeout
	}

	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan forwardResult, 1)
	go func() {
		m, err := negotiate(gctx, n, internal, lease)
		done <- forwardResult{m, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, guardError(ctx, gctx, timeout, r.err)
		}
		return r.mapping, nil
	case <-gctx.Done():
		return nil, guardError(ctx, gctx, timeout, gctx.Err())
	}
}

func negotiate(ctx context.Context, n Negotiator, internal netip.AddrPort, lease time.Duration) (*Mapping, error) {
	gw, err := n.Locate(ctx)
	if err != nil {
		return nil, err
	}
	port, err := n.CreateMapping(ctx, gw, internal, lease)
	if err != nil {
		return nil, err
	}
	m := &Mapping{
		Internal:     internal,
		ExternalPort: port,
		Lease:        lease,
		Gateway:      gw.Protocol(),
		CreatedAt:    time.Now(),
	}
	log.Info().
		Str("gateway", m.Gateway).
		Str("internal", internal.String()).
		Int("external_port", port).
		Dur("lease", lease).
		Msg("port mapping created")
	return m, nil
}

// guardError separates the guard's own deadline from a caller cancellation
// and from failures the negotiator reported.
func guardError(parent, gctx context.Context, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(gctx.Err(), context.DeadlineExceeded) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%w after %v", ErrTimedOut, timeout)
	}
	return err
}
