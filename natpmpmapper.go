package nattraversal

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"
	"github.com/rs/zerolog/log"
)

// natpmpClient is the subset of *natpmp.Client used here.
type natpmpClient interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// NAT-PMP result codes (RFC 6886 section 3.5).
const (
	pmpUnsupportedVersion = 1
	pmpNotAuthorized      = 2
	pmpNetworkFailure     = 3
	pmpOutOfResources     = 4
	pmpUnsupportedOpcode  = 5
)

// NATPMPGateway is a NAT-PMP server found at the default gateway.
type NATPMPGateway struct {
	client natpmpClient
	addr   net.IP
}

// Protocol returns ProtocolNATPMP.
func (g *NATPMPGateway) Protocol() string { return ProtocolNATPMP }

// Addr is the default gateway the client talks to.
func (g *NATPMPGateway) Addr() net.IP { return g.addr }

// ExternalIP asks the gateway for its public address.
func (g *NATPMPGateway) ExternalIP(ctx context.Context) (netip.Addr, error) {
	res, err := callCtx(ctx, g.client.GetExternalAddress)
	if err != nil {
		return netip.Addr{}, classifyNATPMPError(ctx, err)
	}
	return netip.AddrFrom4(res.ExternalIPAddress), nil
}

func (g *NATPMPGateway) addPortMapping(ctx context.Context, internal netip.AddrPort, lease time.Duration) (int, error) {
	// NAT-PMP maps ports of the requesting host only, and only over IPv4.
	if !internal.Addr().Is4() {
		return 0, fmt.Errorf("%w: natpmp cannot map %s", ErrNoGatewayCapability, internal)
	}
	port := int(internal.Port())
	res, err := callCtx(ctx, func() (*natpmp.AddPortMappingResult, error) {
		return g.client.AddPortMapping("tcp", port, port, int(lease/time.Second))
	})
	if err != nil {
		return 0, classifyNATPMPError(ctx, err)
	}
	if res.MappedExternalPort == 0 {
		return 0, fmt.Errorf("%w: gateway mapped port 0", ErrProtocol)
	}
	return int(res.MappedExternalPort), nil
}

// classifyNATPMPError maps a go-nat-pmp failure to a failure kind. The library reports
// result codes and malformed replies only through its error text.
func classifyNATPMPError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := err.Error()
	var code int
	if _, scanErr := fmt.Sscanf(msg, "Non-zero result code %d", &code); scanErr == nil {
		switch code {
		case pmpUnsupportedVersion, pmpUnsupportedOpcode:
			return fmt.Errorf("%w: natpmp result code %d", ErrNoGatewayCapability, code)
		case pmpNotAuthorized, pmpNetworkFailure, pmpOutOfResources:
			return fmt.Errorf("%w: natpmp result code %d", ErrNegotiationRejected, code)
		default:
			return fmt.Errorf("%w: natpmp result code %d", ErrProtocol, code)
		}
	}
	return fmt.Errorf("%w: natpmp: %w", ErrProtocol, err)
}

// locateNATPMP probes the default gateway with an external address request.
// A gateway that does not answer is treated as absent.
func locateNATPMP(ctx context.Context) (*NATPMPGateway, error) {
	gw, err := discoverGateway()
	if err != nil {
		return nil, fmt.Errorf("%w: natpmp gateway discovery: %w", ErrNotFound, err)
	}

	g := &NATPMPGateway{
		client: natpmp.NewClientWithTimeout(gw.AsSlice(), natpmpTimeout),
		addr:   net.IP(gw.AsSlice()),
	}
	if _, err := g.ExternalIP(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if strings.Contains(err.Error(), "result code") {
			// It answered, so a gateway is there; let the mapping request report the refusal.
			log.Debug().Err(err).Str("gateway", gw.String()).Msg("natpmp: probe refused")
			return g, nil
		}
		return nil, fmt.Errorf("%w: natpmp probe of %s: %w", ErrNotFound, gw, err)
	}
	return g, nil
}

// callCtx runs a blocking call and returns early when ctx ends. The call itself is
// abandoned, not interrupted; it finishes within the client's own timeout.
func callCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
