package sockaddr

import (
	"net/netip"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/inet"
)

// Codec encodes and decodes socket addresses using an interface resolver
// for IPv6 scope ids.
type Codec struct {
	Interfaces InterfaceResolver
}

// Default resolves scope ids against the host's interfaces.
var Default = Codec{Interfaces: SystemInterfaces{}}

// Encode converts an endpoint to a binary socket address using Default.
func Encode(port uint16, addr netip.Addr, pref inet.Family) unix.Sockaddr {
	return Default.Encode(port, addr, pref)
}

// Decode converts a binary socket address to an endpoint using Default.
func Decode(sa unix.Sockaddr) (netip.Addr, uint16, bool) {
	return Default.Decode(sa)
}

// Encode produces a 16-byte IPv6 form when the address or the socket's family
// preference is IPv6 or dual-stack, and a 4-byte IPv4 form otherwise.
// IPv4 addresses encoded into the IPv6 form become IPv4-mapped.
// An unresolvable scope name yields scope id 0.
func (c Codec) Encode(port uint16, addr netip.Addr, pref inet.Family) unix.Sockaddr {
	if pref.IsV6() || (addr.Is6() && !addr.Is4In6()) {
		sa := &unix.SockaddrInet6{Port: int(port)}
		if addr.IsValid() {
			sa.Addr = addr.As16()
			sa.ZoneId = c.scopeID(addr.Zone())
		}
		return sa
	}
	return EncodeIPv4(port, addr)
}

// EncodeIPv4 produces the IPv4 form of an endpoint. IPv4-mapped addresses are
// unmapped; addresses with no IPv4 form become the IPv4 wildcard.
func EncodeIPv4(port uint16, addr netip.Addr) *unix.SockaddrInet4 {
	sa := &unix.SockaddrInet4{Port: int(port)}
	if a := addr.Unmap(); a.Is4() {
		sa.Addr = a.As4()
	}
	return sa
}

// Decode returns the endpoint of an AF_INET or AF_INET6 socket address.
// IPv4-mapped IPv6 addresses decode as plain IPv4, so ::ffff:a.b.c.d does not
// come back unchanged; dual-stack peers are reported the same as IPv4 peers.
// A nonzero IPv6 scope id is rendered as the interface name when it resolves,
// otherwise as the decimal id. ok is false for other address families.
func (c Codec) Decode(sa unix.Sockaddr) (addr netip.Addr, port uint16, ok bool) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(sa.Addr), uint16(sa.Port), true
	case *unix.SockaddrInet6:
		addr = netip.AddrFrom16(sa.Addr)
		if addr.Is4In6() {
			return addr.Unmap(), uint16(sa.Port), true
		}
		if sa.ZoneId != 0 {
			addr = addr.WithZone(c.scopeName(sa.ZoneId))
		}
		return addr, uint16(sa.Port), true
	default:
		return netip.Addr{}, 0, false
	}
}

func (c Codec) scopeID(zone string) uint32 {
	if zone == "" {
		return 0
	}
	if id, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(id)
	}
	if c.Interfaces == nil {
		return 0
	}
	if idx, ok := c.Interfaces.IndexByName(zone); ok && idx > 0 {
		return uint32(idx)
	}
	return 0
}

func (c Codec) scopeName(id uint32) string {
	if c.Interfaces != nil {
		if name, ok := c.Interfaces.NameByIndex(int(id)); ok {
			return name
		}
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Family reports the family of a binary socket address.
func Family(sa unix.Sockaddr) inet.Family {
	switch sa.(type) {
	case *unix.SockaddrInet4:
		return inet.IPv4
	case *unix.SockaddrInet6:
		return inet.IPv6
	default:
		return inet.UnknownFamily
	}
}

// Format renders an endpoint as host:port, bracketing IPv6 hosts.
// The zero address renders as "*".
func Format(addr netip.Addr, port uint16) string {
	if !addr.IsValid() {
		return "*:" + strconv.Itoa(int(port))
	}
	return netip.AddrPortFrom(addr, port).String()
}
