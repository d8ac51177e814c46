//go:build linux

package nattraversal

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
)

const procRoute = "/proc/net/route"

// readDefaultGateway reads the default route from /proc/net/route.
// A missing file or missing default route yields the zero Addr and no error.
func readDefaultGateway() (netip.Addr, error) {
	f, err := os.Open(procRoute)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return netip.Addr{}, nil
		}
		return netip.Addr{}, fmt.Errorf("open routing table: %w", err)
	}
	defer f.Close()
	return parseProcRoute(f)
}

// parseProcRoute scans the kernel's route table for destination 00000000.
func parseProcRoute(r io.Reader) (netip.Addr, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		return netip.Addr{}, fmt.Errorf("empty routing table")
	}
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || fields[1] != "00000000" {
			continue
		}
		gw, err := parseHexIP(fields[2])
		if err != nil {
			return netip.Addr{}, fmt.Errorf("parse gateway: %w", err)
		}
		if !gw.IsUnspecified() {
			return gw, nil
		}
	}
	if err := sc.Err(); err != nil {
		return netip.Addr{}, fmt.Errorf("read routing table: %w", err)
	}
	return netip.Addr{}, nil
}

// parseHexIP decodes the little-endian hex form used by /proc/net/route,
// e.g. "0101A8C0" is 192.168.1.1.
func parseHexIP(s string) (netip.Addr, error) {
	if len(s) != 8 {
		return netip.Addr{}, fmt.Errorf("invalid hex IP length: %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid hex IP: %w", err)
	}
	return netip.AddrFrom4([4]byte{b[3], b[2], b[1], b[0]}), nil
}
