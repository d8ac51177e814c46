package nattraversal

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"github.com/pion/stun"
	"github.com/rs/zerolog/log"
)

// Default public address sources.
const (
	DefaultDNSServer  = "208.67.222.222:53"
	DefaultSTUNServer = "stun.l.google.com:19302"
	openDNSMyIP       = "myip.opendns.com"
	lookupTimeout     = 5 * time.Second
)

// PublicAddrResolver reports the public IPv4 address of this host as seen from outside.
type PublicAddrResolver interface {
	PublicAddr(ctx context.Context) (netip.Addr, error)
}

// DNSResolver asks an OpenDNS resolver for myip.opendns.com, which answers with the
// address the query arrived from.
type DNSResolver struct {
	Server string
	Name   string
}

// NewDNSResolver returns a resolver for server, or the OpenDNS default when empty.
func NewDNSResolver(server string) *DNSResolver {
	if server == "" {
		server = DefaultDNSServer
	}
	return &DNSResolver{Server: server, Name: openDNSMyIP}
}

func (r *DNSResolver) PublicAddr(ctx context.Context) (netip.Addr, error) {
	c := &dns.Client{Net: "udp", Timeout: lookupTimeout}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(r.Name), dns.TypeA)

	resp, _, err := c.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s: %w", r.Server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("query %s: %s", r.Server, dns.RcodeToString[resp.Rcode])
	}
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if ip, ok := netip.AddrFromSlice(a.A.To4()); ok {
			return ip, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("query %s: no A record for %s", r.Server, r.Name)
}

// STUNResolver sends a binding request to a STUN server and reads back the reflexive
// address. The port in the answer belongs to the UDP socket and is discarded.
type STUNResolver struct {
	Server string
}

// NewSTUNResolver returns a resolver for server, or the Google default when empty.
func NewSTUNResolver(server string) *STUNResolver {
	if server == "" {
		server = DefaultSTUNServer
	}
	return &STUNResolver{Server: server}
}

func (r *STUNResolver) PublicAddr(ctx context.Context) (netip.Addr, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", r.Server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dial stun %s: %w", r.Server, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// ctx is enforced by closing the socket; the deadline bounds a silent server.
	if err := conn.SetDeadline(time.Now().Add(lookupTimeout)); err != nil {
		return netip.Addr{}, err
	}

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("build stun request: %w", err)
	}
	if _, err := req.WriteTo(conn); err != nil {
		return netip.Addr{}, fmt.Errorf("send stun request: %w", err)
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return netip.Addr{}, ctx.Err()
		}
		return netip.Addr{}, fmt.Errorf("read stun response: %w", err)
	}

	res := &stun.Message{Raw: buf[:n]}
	if err := res.Decode(); err != nil {
		return netip.Addr{}, fmt.Errorf("decode stun response: %w", err)
	}
	if res.TransactionID != req.TransactionID {
		return netip.Addr{}, fmt.Errorf("stun response for another transaction")
	}

	var ip net.IP
	var xor stun.XORMappedAddress
	if err := xor.GetFrom(res); err == nil {
		ip = xor.IP
	} else {
		var mapped stun.MappedAddress
		if err := mapped.GetFrom(res); err != nil {
			return netip.Addr{}, fmt.Errorf("no mapped address in stun response: %w", err)
		}
		ip = mapped.IP
	}
	addr, ok := netip.AddrFromSlice(ip.To4())
	if !ok {
		return netip.Addr{}, fmt.Errorf("stun mapped address %v is not IPv4", ip)
	}
	return addr, nil
}

// LookupPublicAddr returns the first valid IPv4 address any resolver reports, in order.
// Not knowing the public address is normal; the zero Addr is returned then.
func LookupPublicAddr(ctx context.Context, resolvers ...PublicAddrResolver) netip.Addr {
	for _, r := range resolvers {
		if ctx.Err() != nil {
			break
		}
		ip, err := r.PublicAddr(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("public address lookup failed")
			continue
		}
		if !ip.Is4() || ip.IsUnspecified() {
			log.Warn().Str("addr", ip.String()).Msg("public address lookup returned unusable address")
			continue
		}
		log.Debug().Str("addr", ip.String()).Msg("public address found")
		return ip
	}
	return netip.Addr{}
}
