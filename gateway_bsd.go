//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package nattraversal

import (
	"bufio"
	"net/netip"
	"os/exec"
	"strings"
)

// readDefaultGateway runs `netstat -rn`. A failing command is not an error;
// the caller falls back to guessing.
func readDefaultGateway() (netip.Addr, error) {
	out, err := exec.Command("netstat", "-rn").Output()
	if err != nil {
		return netip.Addr{}, nil
	}
	return parseNetstatOutput(string(out)), nil
}

// parseNetstatOutput finds the first IPv4 default route:
//
//	Destination        Gateway            Flags    ...
//	default            192.168.1.1        UGS      ...
func parseNetstatOutput(output string) netip.Addr {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "default", "0.0.0.0", "0.0.0.0/0":
		default:
			continue
		}
		if gw, ok := parseGatewayField(fields[1]); ok {
			return gw
		}
	}
	return netip.Addr{}
}
