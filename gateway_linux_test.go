//go:build linux

package nattraversal

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexIP(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"0101A8C0", "192.168.1.1"},
		{"FE01A8C0", "192.168.1.254"},
		{"01000A0A", "10.10.0.1"},
		{"00000000", "0.0.0.0"},
		{"FFFFFFFF", "255.255.255.255"},
	}
	for _, tt := range tests {
		ip, err := parseHexIP(tt.hex)
		require.NoError(t, err, tt.hex)
		assert.Equal(t, netip.MustParseAddr(tt.want), ip, tt.hex)
	}
}

func TestParseHexIPInvalid(t *testing.T) {
	for _, in := range []string{"", "0101A8", "0101A8C0FF", "ZZZZZZZZ"} {
		_, err := parseHexIP(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseProcRoute(t *testing.T) {
	const header = "Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n"

	t.Run("default route", func(t *testing.T) {
		table := header +
			"eth0\t0000A8C0\t00000000\t0001\t0\t0\t0\t00FFFFFF\t0\t0\t0\n" +
			"eth0\t00000000\t0101A8C0\t0003\t0\t0\t100\t00000000\t0\t0\t0\n"
		gw, err := parseProcRoute(strings.NewReader(table))
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr("192.168.1.1"), gw)
	})

	t.Run("no default route", func(t *testing.T) {
		table := header + "eth0\t0000A8C0\t00000000\t0001\t0\t0\t0\t00FFFFFF\t0\t0\t0\n"
		gw, err := parseProcRoute(strings.NewReader(table))
		require.NoError(t, err)
		assert.False(t, gw.IsValid())
	})

	t.Run("bad gateway column", func(t *testing.T) {
		table := header + "eth0\t00000000\tNOTHEX!!\t0003\t0\t0\t100\t00000000\t0\t0\t0\n"
		_, err := parseProcRoute(strings.NewReader(table))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := parseProcRoute(strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestReadDefaultGatewayLinux(t *testing.T) {
	gw, err := readDefaultGateway()
	if err != nil {
		t.Logf("readDefaultGateway: %v", err)
	}
	if !gw.IsValid() {
		t.Skip("no default route in /proc/net/route")
	}
	assert.True(t, gw.Is4())
	assert.False(t, gw.IsUnspecified())
}
