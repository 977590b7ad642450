// Package sockopt maps logical socket options to the (level, name) pairs
// understood by getsockopt(2) and setsockopt(2).
//
// Options whose meaning depends on the address family pick IPv4- or
// IPv6-specific pairs. Dual-stack sockets are AF_INET6 descriptors and use
// the IPv6 pairs.
package sockopt

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/inet"
)

// Option is a logical socket option.
type Option uint8

const (
	Broadcast Option = iota + 1
	ReceiveBufferSize
	SendBufferSize
	AddressReusable
	ReceiveOutOfBandData
	LowDelay
	KeepAlive
	MulticastTTL
	MulticastLoopback
	TypeOfService
	ReceivePacketInformation
	ReceiveHopLimit
	MaxStreams
)

var optionNames = map[Option]string{
	Broadcast:                "broadcast",
	ReceiveBufferSize:        "receive-buffer-size",
	SendBufferSize:           "send-buffer-size",
	AddressReusable:          "address-reusable",
	ReceiveOutOfBandData:     "receive-oob-inline",
	LowDelay:                 "low-delay",
	KeepAlive:                "keep-alive",
	MulticastTTL:             "multicast-ttl",
	MulticastLoopback:        "multicast-loopback",
	TypeOfService:            "type-of-service",
	ReceivePacketInformation: "receive-packet-info",
	ReceiveHopLimit:          "receive-hop-limit",
	MaxStreams:               "max-streams",
}

func (o Option) String() string {
	if name, ok := optionNames[o]; ok {
		return name
	}
	return "unknown"
}

// Target is the OS-level identity of an option.
type Target struct {
	Level int
	Name  int
}

// Implicit reports options that are always enabled on this platform and are
// never read or written with a syscall. Broadcast is implicit: reads report 1
// and writes succeed without effect.
func Implicit(opt Option) (value int, ok bool) {
	if opt == Broadcast {
		return 1, true
	}
	return 0, false
}

// Resolve returns the (level, name) pair for opt on a socket of the given
// family and type. ok is false when the platform has no such option for that
// combination.
func Resolve(opt Option, family inet.Family, typ inet.SocketType) (Target, bool) {
	switch opt {
	case Broadcast:
		return Target{unix.SOL_SOCKET, unix.SO_BROADCAST}, true
	case ReceiveBufferSize:
		return Target{unix.SOL_SOCKET, unix.SO_RCVBUF}, true
	case SendBufferSize:
		return Target{unix.SOL_SOCKET, unix.SO_SNDBUF}, true
	case AddressReusable:
		return Target{unix.SOL_SOCKET, reuseAddressName(typ)}, true
	case ReceiveOutOfBandData:
		return Target{unix.SOL_SOCKET, unix.SO_OOBINLINE}, true
	case LowDelay:
		return Target{unix.IPPROTO_TCP, unix.TCP_NODELAY}, true
	case KeepAlive:
		return Target{unix.SOL_SOCKET, unix.SO_KEEPALIVE}, true
	case MulticastTTL:
		if family.IsV6() {
			return Target{unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS}, true
		}
		return Target{unix.IPPROTO_IP, unix.IP_MULTICAST_TTL}, true
	case MulticastLoopback:
		if family.IsV6() {
			return Target{unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_LOOP}, true
		}
		return Target{unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP}, true
	case TypeOfService:
		if family == inet.IPv4 {
			return Target{unix.IPPROTO_IP, unix.IP_TOS}, true
		}
	case ReceivePacketInformation:
		if family.IsV6() {
			return Target{unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO}, true
		}
		if family == inet.IPv4 {
			return Target{unix.IPPROTO_IP, ipv4PacketInfoName}, true
		}
	case ReceiveHopLimit:
		if family.IsV6() {
			return Target{unix.IPPROTO_IPV6, unix.IPV6_RECVHOPLIMIT}, true
		}
		if family == inet.IPv4 {
			return Target{unix.IPPROTO_IP, unix.IP_RECVTTL}, true
		}
	case MaxStreams:
		// SCTP only
	}
	return Target{}, false
}
