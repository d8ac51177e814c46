package nattraversal

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInternal = netip.MustParseAddrPort("192.168.1.50:40000")

func TestForwardPortGranted(t *testing.T) {
	m := NewMockNegotiator()

	mapping, err := ForwardPort(context.Background(), m, testInternal, time.Hour, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 40000, mapping.ExternalPort)
	assert.Equal(t, ProtocolUPnP, mapping.Gateway)
	assert.Equal(t, testInternal, mapping.Internal)
	assert.Equal(t, time.Hour, mapping.Lease)
	assert.WithinDuration(t, time.Now().Add(time.Hour), mapping.ExpiresAt(), 5*time.Second)
	assert.Len(t, m.ActiveMappings(), 1)
}

func TestForwardPortNATTypes(t *testing.T) {
	tests := []struct {
		name    string
		natType NATType
		check   func(t *testing.T, port int)
	}{
		{"full cone", FullConeNAT, func(t *testing.T, port int) { assert.Equal(t, 40000, port) }},
		{"restricted", RestrictedNAT, func(t *testing.T, port int) { assert.Equal(t, 41000, port) }},
		{"symmetric", SymmetricNAT, func(t *testing.T, port int) {
			assert.GreaterOrEqual(t, port, 1024)
			assert.LessOrEqual(t, port, 65535)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMockNegotiator()
			m.SetNATType(tt.natType)
			mapping, err := ForwardPort(context.Background(), m, testInternal, time.Minute, time.Second)
			require.NoError(t, err)
			tt.check(t, mapping.ExternalPort)
		})
	}
}

func TestForwardPortSymmetricNATSeeded(t *testing.T) {
	ports := func(seed int64) []int {
		m := NewMockNegotiator()
		m.SetNATType(SymmetricNAT)
		m.SetRandomSeed(seed)
		var out []int
		for _, p := range []uint16{40000, 40001, 40002} {
			mapping, err := ForwardPort(context.Background(), m, netip.AddrPortFrom(testInternal.Addr(), p), time.Minute, time.Second)
			require.NoError(t, err)
			out = append(out, mapping.ExternalPort)
		}
		return out
	}
	assert.Equal(t, ports(7), ports(7))
	assert.NotEqual(t, ports(7), ports(8))
}

func TestForwardPortNATPMPGateway(t *testing.T) {
	m := NewMockNegotiator()
	m.SetProtocol(ProtocolNATPMP)
	external := netip.MustParseAddr("198.51.100.7")
	m.SetExternalIP(external)

	gw, err := m.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProtocolNATPMP, gw.Protocol())
	ip, err := gw.ExternalIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, external, ip)

	mapping, err := ForwardPort(context.Background(), m, testInternal, time.Hour, time.Second)
	require.NoError(t, err)
	assert.Equal(t, ProtocolNATPMP, mapping.Gateway)
}

func TestForwardPortSilentGatewayTimesOut(t *testing.T) {
	m := NewMockNegotiator()
	m.SetBehavior(MockSilent)

	start := time.Now()
	_, err := ForwardPort(context.Background(), m, testInternal, time.Hour, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimedOut)
	assert.NotErrorIs(t, err, ErrNegotiationRejected)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestForwardPortSlowLocateTimesOut(t *testing.T) {
	m := NewMockNegotiator()
	m.SetLatency(time.Hour)

	_, err := ForwardPort(context.Background(), m, testInternal, time.Hour, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrTimedOut)
}

func TestForwardPortRejectionIsNotTimeout(t *testing.T) {
	m := NewMockNegotiator()
	m.SetBehavior(MockReject)

	_, err := ForwardPort(context.Background(), m, testInternal, time.Hour, time.Second)
	require.ErrorIs(t, err, ErrNegotiationRejected)
	assert.NotErrorIs(t, err, ErrTimedOut)
}

func TestForwardPortFailureKindsPassThrough(t *testing.T) {
	tests := []struct {
		behavior MockBehavior
		want     error
	}{
		{MockUnsupported, ErrNoGatewayCapability},
		{MockMalformed, ErrProtocol},
	}
	for _, tt := range tests {
		m := NewMockNegotiator()
		m.SetBehavior(tt.behavior)
		_, err := ForwardPort(context.Background(), m, testInternal, time.Hour, time.Second)
		assert.ErrorIs(t, err, tt.want)
	}
}

func TestForwardPortNoGateway(t *testing.T) {
	m := NewMockNegotiator()
	m.SetLocateError(ErrNotFound)

	_, err := ForwardPort(context.Background(), m, testInternal, time.Hour, time.Second)
	require.ErrorIs(t, err, ErrNotFound)

	locates, mappings := m.Calls()
	assert.Equal(t, 1, locates)
	assert.Zero(t, mappings)
}

func TestForwardPortParentCancel(t *testing.T) {
	m := NewMockNegotiator()
	m.SetBehavior(MockSilent)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := ForwardPort(ctx, m, testInternal, time.Hour, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimedOut)
}

func TestForwardPortLatencyWithinTimeout(t *testing.T) {
	m := NewMockNegotiator()
	m.SetLatency(10 * time.Millisecond)

	_, err := ForwardPort(context.Background(), m, testInternal, time.Hour, time.Second)
	require.NoError(t, err)
}

func TestForwardPortInvalidRequest(t *testing.T) {
	m := NewMockNegotiator()

	_, err := ForwardPort(context.Background(), m, netip.MustParseAddrPort("192.168.1.50:0"), time.Hour, time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimedOut))
	assert.Empty(t, m.ActiveMappings())
}

func TestForwardPortNilNegotiator(t *testing.T) {
	_, err := ForwardPort(context.Background(), nil, testInternal, time.Hour, time.Second)
	assert.Error(t, err)
}
