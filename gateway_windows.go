//go:build windows

package nattraversal

import (
	"bufio"
	"net/netip"
	"os/exec"
	"strings"
)

// readDefaultGateway runs `route print 0.0.0.0`. A failing command is not an error;
// the caller falls back to guessing.
func readDefaultGateway() (netip.Addr, error) {
	out, err := exec.Command("route", "print", "0.0.0.0").Output()
	if err != nil {
		return netip.Addr{}, nil
	}
	return parseWindowsRouteOutput(string(out)), nil
}

// parseWindowsRouteOutput reads the "Active Routes:" section:
//
//	Network Destination        Netmask          Gateway       Interface  Metric
//	          0.0.0.0          0.0.0.0      192.168.1.1    192.168.1.100     25
func parseWindowsRouteOutput(output string) netip.Addr {
	sc := bufio.NewScanner(strings.NewReader(output))
	active := false
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "Active Routes:") {
			active = true
			continue
		}
		if !active {
			continue
		}
		if strings.HasPrefix(line, "====") {
			break
		}
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != "0.0.0.0" || fields[1] != "0.0.0.0" {
			continue
		}
		// "On-link" fails to parse and is skipped.
		if gw, ok := parseGatewayField(fields[2]); ok {
			return gw
		}
	}
	return netip.Addr{}
}
