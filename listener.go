package nattraversal

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// EndpointOptions configures PrepareEndpoint.
type EndpointOptions struct {
	// LocalIP overrides internal address discovery.
	LocalIP netip.Addr
	// Port to listen on; 0 picks a free one.
	Port uint16
	// Negotiator maps the port on the gateway. Nil skips mapping.
	Negotiator Negotiator
	Lease      time.Duration
	Timeout    time.Duration
	// Resolvers are consulted in order for the public address. None means unknown.
	Resolvers []PublicAddrResolver
}

// PrepareEndpoint works out the address a receiver should listen on and the endpoint it
// should advertise. The public address lookup and the port negotiation run side by side.
// A negotiation failure fails the call; a failed lookup only loses the public address.
func PrepareEndpoint(ctx context.Context, opts EndpointOptions) (*NATAddr, error) {
	ip := opts.LocalIP
	if !ip.IsValid() {
		var err error
		if ip, err = LocalIP(); err != nil {
			return nil, fmt.Errorf("determine internal address: %w", err)
		}
	}

	port := opts.Port
	if port == 0 {
		var err error
		if port, err = FreePort(ip); err != nil {
			return nil, err
		}
	}

	lease := opts.Lease
	if lease <= 0 {
		lease = DefaultLease
	}

	addr := &NATAddr{Internal: netip.AddrPortFrom(ip, port)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr.External = LookupPublicAddr(gctx, opts.Resolvers...)
		return nil
	})
	if opts.Negotiator != nil {
		g.Go(func() error {
			m, err := ForwardPort(gctx, opts.Negotiator, addr.Internal, lease, opts.Timeout)
			if err != nil {
				return fmt.Errorf("forward port %d: %w", port, err)
			}
			addr.Mapping = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("internal", addr.Internal.String()).
		Str("endpoint", addr.String()).
		Bool("reachable", addr.Reachable()).
		Msg("endpoint prepared")
	return addr, nil
}
