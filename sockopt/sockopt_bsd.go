//go:build darwin || freebsd || netbsd || openbsd

package sockopt

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/inet"
)

// Only the destination address is reported, not the receiving interface.
const ipv4PacketInfoName = unix.IP_RECVDSTADDR

// SO_REUSEADDR is not sufficient for several datagram binds to one port on
// BSD-derived systems. SO_REUSEPORT is, but it must not be used for TCP.
func reuseAddressName(typ inet.SocketType) int {
	if typ == inet.Datagram {
		return unix.SO_REUSEPORT
	}
	return unix.SO_REUSEADDR
}
