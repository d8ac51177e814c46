package nattraversal

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRoute(t *testing.T) netip.Addr {
	t.Helper()
	ip, err := LocalIP()
	if err != nil {
		t.Skipf("no default route: %v", err)
	}
	return ip
}

func TestDiscoverGateway(t *testing.T) {
	requireRoute(t)

	gw, err := discoverGateway()
	require.NoError(t, err)
	assert.True(t, gw.Is4(), "gateway %s", gw)
	assert.False(t, gw.IsUnspecified())
}

func TestGuessGateway(t *testing.T) {
	local := requireRoute(t)
	if !local.Is4() {
		t.Skip("no IPv4 route")
	}

	gw, err := guessGateway()
	require.NoError(t, err)
	want := local.As4()
	want[3] = 1
	assert.Equal(t, netip.AddrFrom4(want), gw)
}

func TestReadDefaultGatewayDoesNotPanic(t *testing.T) {
	gw, err := readDefaultGateway()
	if err != nil {
		t.Logf("readDefaultGateway: %v", err)
	}
	if gw.IsValid() {
		assert.True(t, gw.Is4())
		assert.False(t, gw.IsUnspecified())
	}
}

func TestParseGatewayField(t *testing.T) {
	tests := []struct {
		field string
		want  string
		ok    bool
	}{
		{"192.168.1.1", "192.168.1.1", true},
		{"10.0.0.1%en0", "10.0.0.1", true},
		{"link#5", "", false},
		{"On-link", "", false},
		{"0.0.0.0", "", false},
		{"fe80::1%en0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			gw, ok := parseGatewayField(tt.field)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, netip.MustParseAddr(tt.want), gw)
			}
		})
	}
}

func TestFreePort(t *testing.T) {
	port, err := FreePort(netip.MustParseAddr("127.0.0.1"))
	require.NoError(t, err)
	assert.NotZero(t, port)
}
