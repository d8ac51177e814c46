package nattraversal

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Gateway is a handle to a NAT device discovered on the local segment.
// It is rediscovered on every run and has no persisted identity.
type Gateway interface {
	// Protocol names the mapping protocol spoken by the device ("upnp" or "natpmp").
	Protocol() string
	// Addr is the device's address on the local segment.
	Addr() net.IP
	// ExternalIP returns the public address the device reports for itself.
	ExternalIP(ctx context.Context) (netip.Addr, error)

	addPortMapping(ctx context.Context, internal netip.AddrPort, lease time.Duration) (int, error)
}

// Negotiator is the gateway capability used by the receive side: find a device,
// then ask it to forward a TCP port.
type Negotiator interface {
	Locate(ctx context.Context) (Gateway, error)
	CreateMapping(ctx context.Context, gw Gateway, internal netip.AddrPort, lease time.Duration) (externalPort int, err error)
}

// Mapping records a lease granted by a gateway. The gateway owns it and expires it;
// this process never renews or deletes it.
type Mapping struct {
	Internal     netip.AddrPort
	ExternalPort int
	Lease        time.Duration
	// Gateway is the protocol that created the mapping.
	Gateway   string
	CreatedAt time.Time
}

// ExpiresAt is when the gateway is expected to drop the mapping.
func (m *Mapping) ExpiresAt() time.Time {
	return m.CreatedAt.Add(m.Lease)
}
