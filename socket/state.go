package socket

import (
	"net/netip"

	"github.com/wippyai/corosock/sockaddr"
)

// State is the connection state of a Socket.
type State uint8

const (
	Unconnected State = iota
	Bound
	Connecting
	Connected
	Listening
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Bound:
		return "bound"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Listening:
		return "listening"
	default:
		return "unknown"
	}
}

// Endpoint is a host address and port. The zero Addr stands for the
// dual-stack wildcard.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// IsZero reports whether e carries neither an address nor a port.
func (e Endpoint) IsZero() bool {
	return !e.Addr.IsValid() && e.Port == 0
}

func (e Endpoint) String() string {
	return sockaddr.Format(e.Addr, e.Port)
}
