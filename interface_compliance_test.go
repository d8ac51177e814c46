package nattraversal

import (
	"net"
	"testing"
)

func TestNATAddrImplementsNetAddr(t *testing.T) {
	var _ net.Addr = (*NATAddr)(nil)
}

func TestGatewaysImplementGateway(t *testing.T) {
	var _ Gateway = (*UPnPGateway)(nil)
	var _ Gateway = (*NATPMPGateway)(nil)
	var _ Gateway = (*MockGateway)(nil)
}

func TestNegotiatorsImplementNegotiator(t *testing.T) {
	var _ Negotiator = (*IGDNegotiator)(nil)
	var _ Negotiator = (*MockNegotiator)(nil)
}

func TestResolversImplementPublicAddrResolver(t *testing.T) {
	var _ PublicAddrResolver = (*DNSResolver)(nil)
	var _ PublicAddrResolver = (*STUNResolver)(nil)
}
