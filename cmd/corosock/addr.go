package main

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// parseEndpoint splits "host:port". An empty host or "*" is the dual-stack
// wildcard, returned as the zero netip.Addr.
func parseEndpoint(s string) (netip.Addr, uint16, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return netip.Addr{}, 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid port %q", portStr)
	}
	if host == "" || host == "*" {
		return netip.Addr{}, uint16(port), nil
	}
	if host == "localhost" {
		return netip.AddrFrom4([4]byte{127, 0, 0, 1}), uint16(port), nil
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid address %q", host)
	}
	return addr, uint16(port), nil
}
