// Package inet defines the closed sets of address families and socket types
// shared by the address codec, the option resolver and the socket core.
package inet

import "golang.org/x/sys/unix"

// Family is the network-layer protocol preference of a socket.
type Family uint8

const (
	UnknownFamily Family = iota
	IPv4
	IPv6
	// AnyIP is a dual-stack IPv6 socket that also carries IPv4 traffic.
	AnyIP
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	case AnyIP:
		return "any"
	default:
		return "unknown"
	}
}

// Domain returns the OS address family used to create a socket of this family.
// Dual-stack sockets are AF_INET6 descriptors.
func (f Family) Domain() int {
	if f == IPv6 || f == AnyIP {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

// IsV6 reports whether the family is carried on an AF_INET6 descriptor.
func (f Family) IsV6() bool {
	return f == IPv6 || f == AnyIP
}

// FamilyFromDomain maps an OS address family to a Family.
func FamilyFromDomain(domain int) Family {
	switch domain {
	case unix.AF_INET:
		return IPv4
	case unix.AF_INET6:
		return IPv6
	default:
		return UnknownFamily
	}
}

// SocketType is the transport kind of a socket, fixed at creation.
type SocketType uint8

const (
	UnknownType SocketType = iota
	Stream
	Datagram
)

func (t SocketType) String() string {
	switch t {
	case Stream:
		return "stream"
	case Datagram:
		return "datagram"
	default:
		return "unknown"
	}
}

// Sotype returns the OS socket type constant.
func (t SocketType) Sotype() int {
	if t == Datagram {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

// TypeFromSotype maps an OS socket type to a SocketType.
func TypeFromSotype(sotype int) SocketType {
	switch sotype {
	case unix.SOCK_STREAM:
		return Stream
	case unix.SOCK_DGRAM:
		return Datagram
	default:
		return UnknownType
	}
}
