package nattraversal

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"time"
)

// NATType selects how MockNegotiator picks external ports.
type NATType int

const (
	FullConeNAT NATType = iota
	RestrictedNAT
	SymmetricNAT
)

// MockBehavior selects how MockNegotiator answers a mapping request.
type MockBehavior int

const (
	// MockGrant maps the port.
	MockGrant MockBehavior = iota
	// MockReject answers with a refusal.
	MockReject
	// MockUnsupported answers as a gateway without mapping support.
	MockUnsupported
	// MockMalformed answers with an unparseable reply.
	MockMalformed
	// MockSilent never answers.
	MockSilent
)

// MockGateway is the Gateway handed out by MockNegotiator.
type MockGateway struct {
	protocol   string
	addr       net.IP
	externalIP netip.Addr
}

// Protocol reports the protocol set with MockNegotiator.SetProtocol.
func (g *MockGateway) Protocol() string { return g.protocol }

// Addr is always 192.168.1.1.
func (g *MockGateway) Addr() net.IP { return g.addr }

// ExternalIP reports the address set with MockNegotiator.SetExternalIP.
func (g *MockGateway) ExternalIP(ctx context.Context) (netip.Addr, error) {
	return g.externalIP, nil
}

func (g *MockGateway) addPortMapping(ctx context.Context, internal netip.AddrPort, lease time.Duration) (int, error) {
	return 0, fmt.Errorf("mock gateway: map through MockNegotiator")
}

// MockMapping is a mapping held by MockNegotiator.
type MockMapping struct {
	Internal     netip.AddrPort
	ExternalPort int
	ExpiresAt    time.Time
}

// MockNegotiator is an in-memory Negotiator for tests. It never touches the network.
type MockNegotiator struct {
	mu        sync.Mutex
	gateway   *MockGateway
	locateErr error
	behavior  MockBehavior
	latency   time.Duration
	natType   NATType
	rng       *rand.Rand
	mappings  map[int]*MockMapping
	locates   int
	mapCalls  int
}

// NewMockNegotiator returns a mock that finds a UPnP gateway and grants every request.
func NewMockNegotiator() *MockNegotiator {
	return &MockNegotiator{
		gateway: &MockGateway{
			protocol:   ProtocolUPnP,
			addr:       net.IPv4(192, 168, 1, 1),
			externalIP: netip.MustParseAddr("203.0.113.100"), // RFC 5737
		},
		natType:  FullConeNAT,
		rng:      rand.New(rand.NewSource(42)),
		mappings: make(map[int]*MockMapping),
	}
}

// SetRandomSeed reseeds the port generator used for SymmetricNAT.
func (m *MockNegotiator) SetRandomSeed(seed int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rng = rand.New(rand.NewSource(seed))
}

// SetProtocol changes the protocol the located gateway claims to speak.
func (m *MockNegotiator) SetProtocol(protocol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateway.protocol = protocol
}

// SetExternalIP changes the public address the gateway reports.
func (m *MockNegotiator) SetExternalIP(ip netip.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateway.externalIP = ip
}

// SetLatency delays every answer by d, or until the context ends.
func (m *MockNegotiator) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// SetLocateError makes Locate fail with err. Nil restores discovery.
func (m *MockNegotiator) SetLocateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locateErr = err
}

// SetBehavior selects how mapping requests are answered.
func (m *MockNegotiator) SetBehavior(b MockBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behavior = b
}

// SetNATType selects how external ports are chosen.
func (m *MockNegotiator) SetNATType(t NATType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.natType = t
}

func (m *MockNegotiator) Locate(ctx context.Context) (Gateway, error) {
	m.mu.Lock()
	m.locates++
	latency, locateErr, gw := m.latency, m.locateErr, m.gateway
	m.mu.Unlock()

	if err := wait(ctx, latency); err != nil {
		return nil, err
	}
	if locateErr != nil {
		return nil, locateErr
	}
	return gw, nil
}

func (m *MockNegotiator) CreateMapping(ctx context.Context, gw Gateway, internal netip.AddrPort, lease time.Duration) (int, error) {
	if err := validateMapping(gw, internal, lease); err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.mapCalls++
	latency, behavior := m.latency, m.behavior
	m.mu.Unlock()

	if behavior == MockSilent {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := wait(ctx, latency); err != nil {
		return 0, err
	}

	switch behavior {
	case MockReject:
		return 0, fmt.Errorf("%w: mock: conflict in mapping entry", ErrNegotiationRejected)
	case MockUnsupported:
		return 0, fmt.Errorf("%w: mock: action not implemented", ErrNoGatewayCapability)
	case MockMalformed:
		return 0, fmt.Errorf("%w: mock: unexpected result size", ErrProtocol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	port := m.externalPort(int(internal.Port()))
	m.mappings[port] = &MockMapping{
		Internal:     internal,
		ExternalPort: port,
		ExpiresAt:    time.Now().Add(lease),
	}
	return port, nil
}

// ActiveMappings returns the unexpired mappings keyed by external port.
func (m *MockNegotiator) ActiveMappings() map[int]*MockMapping {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	out := make(map[int]*MockMapping)
	for port, mm := range m.mappings {
		if now.Before(mm.ExpiresAt) {
			out[port] = mm
		}
	}
	return out
}

// Calls reports how many Locate and CreateMapping calls were made.
func (m *MockNegotiator) Calls() (locates, mappings int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locates, m.mapCalls
}

func (m *MockNegotiator) externalPort(internal int) int {
	switch m.natType {
	case RestrictedNAT:
		return (internal+1000-1)%65535 + 1
	case SymmetricNAT:
		return 1024 + m.rng.Intn(65535-1024)
	default:
		return internal
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
