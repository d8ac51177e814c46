package nattraversal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway2"
	"github.com/huin/goupnp/soap"
	"github.com/rs/zerolog/log"
)

// upnpClient is the subset of a WAN connection service used here.
// It is satisfied by WANIPConnection1, WANIPConnection2 and WANPPPConnection1.
type upnpClient interface {
	AddPortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
		NewInternalPort uint16,
		NewInternalClient string,
		NewEnabled bool,
		NewPortMappingDescription string,
		NewLeaseDuration uint32,
	) error
	GetExternalIPAddressCtx(ctx context.Context) (string, error)
}

// anyPortClient is implemented by WANIPConnection2, where the gateway picks the external port.
type anyPortClient interface {
	AddAnyPortMappingCtx(
		ctx context.Context,
		NewRemoteHost string,
		NewExternalPort uint16,
		NewProtocol string,
		NewInternalPort uint16,
		NewInternalClient string,
		NewEnabled bool,
		NewPortMappingDescription string,
		NewLeaseDuration uint32,
	) (uint16, error)
}

// UPnP error codes that mean the action itself is unavailable on the device.
const (
	upnpInvalidAction        = 401
	upnpActionNotImplemented = 602
)

// UPnPGateway is a UPnP IGD located via SSDP.
type UPnPGateway struct {
	client  upnpClient
	service string
	addr    net.IP
}

// Protocol returns ProtocolUPnP.
func (g *UPnPGateway) Protocol() string { return ProtocolUPnP }

// Addr is the host of the device description URL.
func (g *UPnPGateway) Addr() net.IP { return g.addr }

// Service is the WAN connection service type the gateway was found through.
func (g *UPnPGateway) Service() string { return g.service }

// ExternalIP asks the device for its WAN address.
func (g *UPnPGateway) ExternalIP(ctx context.Context) (netip.Addr, error) {
	raw, err := g.client.GetExternalIPAddressCtx(ctx)
	if err != nil {
		return netip.Addr{}, classifyUPnPError(ctx, err)
	}
	ip, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: external address %q: %w", ErrProtocol, raw, err)
	}
	return ip.Unmap(), nil
}

func (g *UPnPGateway) addPortMapping(ctx context.Context, internal netip.AddrPort, lease time.Duration) (int, error) {
	port := internal.Port()
	leaseSeconds := uint32(lease / time.Second)

	if ac, ok := g.client.(anyPortClient); ok {
		// The requested external port is a hint; the gateway reports what it reserved.
		assigned, err := ac.AddAnyPortMappingCtx(ctx,
			"",
			port,
			"TCP",
			port,
			internal.Addr().String(),
			true,
			mappingDescription,
			leaseSeconds,
		)
		if err != nil {
			return 0, classifyUPnPError(ctx, err)
		}
		if assigned == 0 {
			return 0, fmt.Errorf("%w: gateway reserved port 0", ErrProtocol)
		}
		return int(assigned), nil
	}

	// Older services cannot pick a port, so ask for the internal one.
	err := g.client.AddPortMappingCtx(ctx,
		"",
		port,
		"TCP",
		port,
		internal.Addr().String(),
		true,
		mappingDescription,
		leaseSeconds,
	)
	if err != nil {
		return 0, classifyUPnPError(ctx, err)
	}
	return int(port), nil
}

// classifyUPnPError maps a SOAP exchange failure to a failure kind.
func classifyUPnPError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var fault *soap.SOAPFaultError
	if errors.As(err, &fault) {
		code := fault.Detail.UPnPError.Errorcode
		desc := fault.Detail.UPnPError.ErrorDescription
		switch code {
		case upnpInvalidAction, upnpActionNotImplemented:
			return fmt.Errorf("%w: upnp error %d %s", ErrNoGatewayCapability, code, desc)
		default:
			return fmt.Errorf("%w: upnp error %d %s", ErrNegotiationRejected, code, desc)
		}
	}
	return fmt.Errorf("%w: upnp: %w", ErrProtocol, err)
}

// locateUPnP searches for an IGD in order of preference: WANIPConnection2, WANIPConnection1,
// then WANPPPConnection1. Within a service type the first client returned wins.
func locateUPnP(ctx context.Context) (*UPnPGateway, error) {
	v2, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx)
	if err == nil && len(v2) > 0 {
		return &UPnPGateway{client: v2[0], service: "WANIPConnection2", addr: hostIP(v2[0].Location)}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logUPnPMiss("WANIPConnection2", err)

	v1, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx)
	if err == nil && len(v1) > 0 {
		return &UPnPGateway{client: v1[0], service: "WANIPConnection1", addr: hostIP(v1[0].Location)}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logUPnPMiss("WANIPConnection1", err)

	ppp, _, err := internetgateway2.NewWANPPPConnection1ClientsCtx(ctx)
	if err == nil && len(ppp) > 0 {
		return &UPnPGateway{client: ppp[0], service: "WANPPPConnection1", addr: hostIP(ppp[0].Location)}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logUPnPMiss("WANPPPConnection1", err)

	return nil, fmt.Errorf("%w: no UPnP IGD answered (tried WANIPConnection2, WANIPConnection1, WANPPPConnection1)", ErrNotFound)
}

func logUPnPMiss(service string, err error) {
	ev := log.Debug().Str("service", service)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("upnp: no device for service")
}

func hostIP(u *url.URL) net.IP {
	if u == nil {
		return nil
	}
	return net.ParseIP(u.Hostname())
}
