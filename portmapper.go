// Package nattraversal finds a NAT gateway on the local segment and asks it to forward
// an external TCP port to this host, using UPnP IGD or NAT-PMP.
package nattraversal

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
)

// IGDNegotiator talks to real gateways. The zero value tries both protocols.
type IGDNegotiator struct {
	DisableUPnP   bool
	DisableNATPMP bool
}

// NewIGDNegotiator returns a negotiator restricted to the enabled protocols.
func NewIGDNegotiator(upnp, natpmp bool) *IGDNegotiator {
	return &IGDNegotiator{DisableUPnP: !upnp, DisableNATPMP: !natpmp}
}

// Locate tries UPnP first, then NAT-PMP at the default gateway.
func (n *IGDNegotiator) Locate(ctx context.Context) (Gateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []error
	if !n.DisableUPnP {
		gw, err := locateUPnP(ctx)
		if err == nil {
			log.Debug().Str("service", gw.Service()).IPAddr("addr", gw.Addr()).Msg("upnp gateway found")
			return gw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}

	if !n.DisableNATPMP {
		gw, err := locateNATPMP(ctx)
		if err == nil {
			log.Debug().IPAddr("addr", gw.Addr()).Msg("natpmp gateway found")
			return gw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: all gateway protocols disabled", ErrNotFound)
	}
	return nil, fmt.Errorf("no gateway available: %w", errors.Join(errs...))
}

// CreateMapping asks gw to forward an external TCP port to internal for lease.
// The request is validated before anything is sent.
func (n *IGDNegotiator) CreateMapping(ctx context.Context, gw Gateway, internal netip.AddrPort, lease time.Duration) (int, error) {
	if err := validateMapping(gw, internal, lease); err != nil {
		return 0, err
	}
	return gw.addPortMapping(ctx, internal, lease)
}

// validateMapping rejects requests no gateway could honor.
func validateMapping(gw Gateway, internal netip.AddrPort, lease time.Duration) error {
	if gw == nil {
		return fmt.Errorf("create mapping: nil gateway")
	}
	if !internal.Addr().IsValid() || internal.Addr().IsUnspecified() {
		return fmt.Errorf("create mapping: invalid internal address %s", internal.Addr())
	}
	if internal.Port() == 0 {
		return fmt.Errorf("create mapping: internal port must be in 1..65535")
	}
	if lease < 0 || lease%time.Second != 0 {
		return fmt.Errorf("create mapping: lease %v is not a whole number of seconds", lease)
	}
	if lease/time.Second > 1<<32-1 {
		return fmt.Errorf("create mapping: lease %v too long", lease)
	}
	return nil
}
