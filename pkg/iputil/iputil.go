// Package iputil parses the IPv4 and hardware address forms accepted on the command line
package iputil

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/solidDoWant/infra-mk3/tooling/nlroute/pkg/rtnl"
)

// ParseIPv4 parses a dotted quad IPv4 address. The result is always 4 bytes long.
func ParseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil || strings.Contains(s, ":") {
		return nil, fmt.Errorf("%w: invalid IPv4 address %q", rtnl.ErrMalformedInput, s)
	}

	return ip, nil
}

// ParsePrefix parses "x.x.x.x" or "x.x.x.x/n". A missing prefix length means
// a host address (/32). The address is returned as written, without masking.
func ParsePrefix(s string) (net.IP, int, error) {
	addr, bits, found := strings.Cut(s, "/")

	prefixLen := 32
	if found {
		n, err := strconv.ParseUint(bits, 10, 8)
		if err != nil || n > 32 {
			return nil, 0, fmt.Errorf("%w: invalid prefix length %q", rtnl.ErrMalformedInput, bits)
		}
		prefixLen = int(n)
	}

	ip, err := ParseIPv4(addr)
	if err != nil {
		return nil, 0, err
	}

	return ip, prefixLen, nil
}

// ParseHardwareAddr parses a colon separated 6 byte hardware address such as
// 02:42:ac:11:00:02.
func ParseHardwareAddr(s string) (net.HardwareAddr, error) {
	addr, err := net.ParseMAC(s)
	if err != nil || len(addr) != 6 || strings.Count(s, ":") != 5 {
		return nil, fmt.Errorf("%w: invalid hardware address %q", rtnl.ErrMalformedInput, s)
	}

	return addr, nil
}
