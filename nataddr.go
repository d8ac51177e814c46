package nattraversal

import "net/netip"

// NATAddr is the endpoint a receiver advertises to its peer. It implements net.Addr.
type NATAddr struct {
	Internal netip.AddrPort
	// External is the public address of the host, zero when unknown.
	External netip.Addr
	// Mapping is nil when no port mapping was made.
	Mapping *Mapping
}

// Network implements net.Addr.
func (a *NATAddr) Network() string { return "tcp" }

// String is "external:mappedPort" when both a public address and a mapping are known,
// otherwise the internal address.
func (a *NATAddr) String() string {
	if a.Reachable() {
		return netip.AddrPortFrom(a.External, uint16(a.Mapping.ExternalPort)).String()
	}
	return a.Internal.String()
}

// Reachable reports whether String names the public endpoint.
func (a *NATAddr) Reachable() bool {
	return a.External.IsValid() && a.Mapping != nil && a.Mapping.ExternalPort > 0
}

// InternalAddr returns the address the listener binds.
func (a *NATAddr) InternalAddr() string { return a.Internal.String() }
