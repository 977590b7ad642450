package socket

import (
	"context"
	"net/netip"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/inet"
	"github.com/wippyai/corosock/reactor"
	"github.com/wippyai/corosock/sockaddr"
	"github.com/wippyai/corosock/sockopt"
	"github.com/wippyai/corosock/socket/internal/errmap"
)

// Bind assigns the local address. The zero addr binds the wildcard of the
// socket's family; on a dual-stack socket that accepts both families.
//
// IPv6 sockets always get IPV6_V6ONLY set explicitly, since its default
// varies between systems. If the OS rejects a dual-stack wildcard bind with
// EAFNOSUPPORT, Bind retries once with the IPv4 wildcard and the socket's
// family narrows to IPv4.
func (s *Socket) Bind(addr netip.Addr, port uint16, opts BindOptions) error {
	target := sockaddr.Format(addr, port)
	if st := s.State(); st != Unconnected {
		return s.record(errors.InvalidState(errors.OpBind, st.String()))
	}
	fd, ok := s.fd.acquire()
	if !ok {
		return s.closedError(errors.OpBind)
	}
	defer s.fd.release()

	family, typ := s.Family(), s.Type()

	if opts.ReuseAddress {
		if t, ok := sockopt.Resolve(sockopt.AddressReusable, family, typ); ok {
			if err := unix.SetsockoptInt(fd, t.Level, t.Name, 1); err != nil {
				s.logger.Debug("address reuse not applied", zap.Error(err))
			}
		}
	}

	sa := s.codec.Encode(port, addr, family)
	if _, ok := sa.(*unix.SockaddrInet6); ok && family.IsV6() {
		v6only := 0
		if opts.IPv6Only || family == inet.IPv6 || (addr.Is6() && !addr.Is4In6()) {
			v6only = 1
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, v6only); err != nil {
			s.logger.Warn("cannot set IPV6_V6ONLY", zap.Error(err))
		}
	}

	err := unix.Bind(fd, sa)
	if err == unix.EAFNOSUPPORT && family == inet.AnyIP && !addr.IsValid() {
		s.logger.Debug("dual-stack bind rejected, narrowing to ipv4", zap.String("addr", target))
		err = unix.Bind(fd, sockaddr.EncodeIPv4(port, addr))
		if err == nil {
			s.mu.Lock()
			s.family = inet.IPv4
			s.mu.Unlock()
		}
	}
	if err != nil {
		return s.record(syscallError(errors.OpBind, err, target))
	}

	s.mu.Lock()
	s.state = Bound
	s.mu.Unlock()
	s.refreshLocal(fd)

	s.metrics.op(errors.OpBind)
	s.logger.Debug("bound", zap.Stringer("local", s.LocalEndpoint()))
	return nil
}

// refreshLocal re-reads the local endpoint after bind, so a port 0 request
// reports the port the OS picked. fd must be held.
func (s *Socket) refreshLocal(fd int) {
	lsa, err := unix.Getsockname(fd)
	if err != nil {
		return
	}
	addr, port, ok := s.codec.Decode(lsa)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.family == inet.AnyIP && addr.IsUnspecified() {
		addr = netip.Addr{}
	}
	s.local = Endpoint{Addr: addr, Port: port}
	s.mu.Unlock()
}

// Connect connects to addr:port, suspending until the handshake completes.
//
// The socket enters Connecting before the first attempt, so Close can
// interrupt it. A hard failure returns the socket to Unconnected. If ctx
// ends first, Connect returns a canceled or timeout error and leaves the
// socket in Connecting; calling Connect again resumes the same attempt.
func (s *Socket) Connect(ctx context.Context, addr netip.Addr, port uint16) error {
	target := sockaddr.Format(addr, port)

	s.mu.Lock()
	st := s.state
	if st != Unconnected && st != Bound && st != Connecting {
		s.mu.Unlock()
		return s.record(errors.InvalidState(errors.OpConnect, st.String()))
	}
	if !s.fd.valid() {
		s.mu.Unlock()
		return s.closedError(errors.OpConnect)
	}
	s.state = Connecting
	family := s.family
	s.mu.Unlock()

	sa := s.codec.Encode(port, addr, family)

	sub, err := s.subscribe(errors.OpConnect, reactor.Write)
	if err != nil {
		return err
	}
	defer sub.Release()

	for {
		fd, ok := s.fd.acquire()
		if !ok || s.State() != Connecting {
			if ok {
				s.fd.release()
			}
			return s.closedError(errors.OpConnect)
		}
		err := unix.Connect(fd, sa)
		s.fd.release()

		if err == nil {
			return s.connected(target)
		}
		errno := errnoOf(err)
		entry := errmap.Lookup(errors.OpConnect, errno)
		switch entry.Effect {
		case errmap.Retry:
			continue
		case errmap.Connected:
			return s.connected(target)
		case errmap.Wait:
			if e := s.wait(ctx, errors.OpConnect, sub); e != nil {
				e.Address = target
				return s.record(e)
			}
			if errno, ok := s.pendingError(); ok {
				if e := s.connectFailed(errno, target); e != nil {
					return e
				}
			}
			continue
		default:
			return s.connectFailed(errno, target)
		}
	}
}

// pendingError reads SO_ERROR after write readiness. A nonzero value is the
// outcome of the in-progress connect.
func (s *Socket) pendingError() (unix.Errno, bool) {
	fd, ok := s.fd.acquire()
	if !ok {
		return 0, false
	}
	defer s.fd.release()
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil || v == 0 {
		return 0, false
	}
	return unix.Errno(v), true
}

// connectFailed classifies a connect errno. It returns nil for outcomes that
// keep the loop going.
func (s *Socket) connectFailed(errno unix.Errno, target string) error {
	entry := errmap.Lookup(errors.OpConnect, errno)
	switch entry.Effect {
	case errmap.Retry, errmap.Wait:
		return nil
	case errmap.Connected:
		return s.connected(target)
	}

	e := entry.Build(errors.OpConnect, errno, target)
	s.mu.Lock()
	if s.state == Connecting {
		s.state = Unconnected
	}
	s.mu.Unlock()
	if entry.Effect == errmap.Close {
		s.closeWith(e)
	}
	return s.record(e)
}

func (s *Socket) connected(target string) error {
	s.mu.Lock()
	s.state = Connected
	s.mu.Unlock()
	s.fetchConnectionParameters()
	s.metrics.op(errors.OpConnect)
	s.logger.Debug("connected", zap.String("peer", target), zap.Stringer("local", s.LocalEndpoint()))
	return nil
}

// Listen marks a stream socket as accepting connections.
func (s *Socket) Listen(backlog int) error {
	if st := s.State(); st != Bound && st != Unconnected {
		return s.record(errors.InvalidState(errors.OpListen, st.String()))
	}
	fd, ok := s.fd.acquire()
	if !ok {
		return s.closedError(errors.OpListen)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	err := unix.Listen(fd, backlog)
	s.fd.release()
	if err != nil {
		return s.record(syscallError(errors.OpListen, err, s.LocalEndpoint().String()))
	}

	s.mu.Lock()
	s.state = Listening
	s.mu.Unlock()
	s.fetchConnectionParameters()

	s.metrics.op(errors.OpListen)
	s.logger.Debug("listening", zap.Stringer("local", s.LocalEndpoint()), zap.Int("backlog", backlog))
	return nil
}

// Accept waits for a pending connection and returns it as a new Connected
// socket that owns the accepted descriptor. Failures leave the listening
// socket untouched. Running two Accept loops on one socket is not supported.
func (s *Socket) Accept(ctx context.Context) (*Socket, error) {
	if st := s.State(); st != Listening || s.Type() != inet.Stream {
		return nil, s.record(errors.InvalidState(errors.OpAccept, st.String()))
	}

	sub, err := s.subscribe(errors.OpAccept, reactor.Read)
	if err != nil {
		return nil, err
	}
	defer sub.Release()

	for {
		fd, ok := s.fd.acquire()
		if !ok {
			return nil, s.closedError(errors.OpAccept)
		}
		nfd, _, err := sysAccept(fd)
		s.fd.release()

		if err == nil {
			return s.adopt(nfd), nil
		}
		errno := errnoOf(err)
		switch errmap.Lookup(errors.OpAccept, errno).Effect {
		case errmap.Retry:
			continue
		case errmap.Wait:
			if e := s.wait(ctx, errors.OpAccept, sub); e != nil {
				return nil, s.record(e)
			}
			continue
		default:
			return nil, s.record(syscallError(errors.OpAccept, err, s.LocalEndpoint().String()))
		}
	}
}

// adopt wraps an accepted descriptor. The new socket inherits the listener's
// configuration.
func (s *Socket) adopt(nfd int) *Socket {
	c := newSocket(nfd, s.Type(), s.Family(), s.cfg)
	c.state = Connected
	c.fetchConnectionParameters()
	s.metrics.op(errors.OpAccept)
	c.logger.Debug("accepted", zap.Stringer("peer", c.PeerEndpoint()))
	return c
}
