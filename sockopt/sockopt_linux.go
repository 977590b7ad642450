package sockopt

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/inet"
)

const ipv4PacketInfoName = unix.IP_PKTINFO

// SO_REUSEADDR already permits several datagram binds to one port on linux.
func reuseAddressName(inet.SocketType) int {
	return unix.SO_REUSEADDR
}
