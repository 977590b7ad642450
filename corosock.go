package corosock

import (
	"context"
	"net/netip"

	"github.com/wippyai/corosock/inet"
	"github.com/wippyai/corosock/socket"
)

// familyOf picks the socket family for addr. The zero address asks for a
// dual-stack socket.
func familyOf(addr netip.Addr) inet.Family {
	switch {
	case !addr.IsValid():
		return inet.AnyIP
	case addr.Unmap().Is4():
		return inet.IPv4
	default:
		return inet.IPv6
	}
}

// Dial opens a TCP connection to addr:port.
func Dial(ctx context.Context, addr netip.Addr, port uint16, opts ...socket.Option) (*socket.Socket, error) {
	s, err := socket.New(inet.Stream, familyOf(addr), opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx, addr, port); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ListenTCP binds addr:port with address reuse and starts listening. A
// non-positive backlog uses the system maximum.
func ListenTCP(addr netip.Addr, port uint16, backlog int, opts ...socket.Option) (*socket.Socket, error) {
	s, err := socket.New(inet.Stream, familyOf(addr), opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Bind(addr, port, socket.BindOptions{ReuseAddress: true}); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Listen(backlog); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ListenUDP binds a datagram socket to addr:port.
func ListenUDP(addr netip.Addr, port uint16, opts ...socket.Option) (*socket.Socket, error) {
	s, err := socket.New(inet.Datagram, familyOf(addr), opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Bind(addr, port, socket.BindOptions{}); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
