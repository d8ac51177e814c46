//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly && !windows

package nattraversal

import "net/netip"

// readDefaultGateway has no routing table source here (Android without /proc, iOS,
// Plan 9, js/wasm), so discovery always guesses.
func readDefaultGateway() (netip.Addr, error) {
	return netip.Addr{}, nil
}
