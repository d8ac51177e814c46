package nattraversal

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

// discoverGateway returns the IPv4 default gateway. The platform routing table is
// consulted first; when it yields nothing the .1 address of the local subnet is assumed.
func discoverGateway() (netip.Addr, error) {
	gw, err := readDefaultGateway()
	if err != nil {
		log.Debug().Err(err).Msg("routing table unreadable, guessing gateway")
	}
	if gw.IsValid() && !gw.IsUnspecified() {
		return gw, nil
	}
	return guessGateway()
}

// guessGateway assumes the router sits at x.y.z.1 of the subnet the default route leaves from.
func guessGateway() (netip.Addr, error) {
	local, err := LocalIP()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("determine local IP: %w", err)
	}
	if !local.Is4() {
		return netip.Addr{}, fmt.Errorf("local address %s is not IPv4", local)
	}
	b := local.As4()
	b[3] = 1
	return netip.AddrFrom4(b), nil
}

// LocalIP returns the address this host uses to reach the internet. The UDP "dial"
// only selects a route; no packet is sent.
func LocalIP() (netip.Addr, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return netip.Addr{}, err
	}
	defer conn.Close()

	udp, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("unexpected local address type: %T", conn.LocalAddr())
	}
	ip, ok := netip.AddrFromSlice(udp.IP)
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid local address %v", udp.IP)
	}
	return ip.Unmap(), nil
}

// FreePort asks the kernel for an unused TCP port on ip and releases it again.
// Another process may take the port before it is bound; the bind then fails loudly.
func FreePort(ip netip.Addr) (uint16, error) {
	ln, err := net.Listen("tcp", netip.AddrPortFrom(ip, 0).String())
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer ln.Close()
	return netip.MustParseAddrPort(ln.Addr().String()).Port(), nil
}

// parseGatewayField accepts an IPv4 route table gateway column, possibly carrying a
// %zone suffix. Interface names and link# entries yield false.
func parseGatewayField(field string) (netip.Addr, bool) {
	if i := strings.IndexByte(field, '%'); i >= 0 {
		field = field[:i]
	}
	ip, err := netip.ParseAddr(field)
	if err != nil {
		return netip.Addr{}, false
	}
	ip = ip.Unmap()
	if !ip.Is4() || ip.IsUnspecified() {
		return netip.Addr{}, false
	}
	return ip, true
}
