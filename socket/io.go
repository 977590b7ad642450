package socket

import (
	"context"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/inet"
	"github.com/wippyai/corosock/reactor"
	"github.com/wippyai/corosock/sockaddr"
	"github.com/wippyai/corosock/socket/internal/errmap"
)

// Recv reads into b. Without all it returns as soon as any bytes arrive;
// with all it keeps reading until b is full.
//
// Stream sockets must be Connected, datagram sockets Unconnected or Bound.
// When a stream peer closes or resets the connection, Recv closes the
// socket and returns the bytes received so far with a remote_closed error.
// Later calls fail with a closed error that wraps it.
func (s *Socket) Recv(ctx context.Context, b []byte, all bool) (int, error) {
	typ := s.Type()
	if err := s.checkRecvState(errors.OpRecv, typ); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}

	sub, err := s.subscribe(errors.OpRecv, reactor.Read)
	if err != nil {
		return 0, err
	}
	defer sub.Release()

	total := 0
	for total < len(b) {
		fd, ok := s.fd.acquire()
		if !ok {
			return total, s.closedError(errors.OpRecv)
		}
		n, err := unix.Read(fd, b[total:])
		s.fd.release()

		if err == nil {
			if n == 0 && typ == inet.Stream {
				return total, s.remoteClosed(errors.OpRecv, unix.Errno(0))
			}
			total += n
			s.metrics.received(n)
			if !all {
				break
			}
			continue
		}

		errno := errnoOf(err)
		entry := errmap.Lookup(errors.OpRecv, errno)
		switch entry.Effect {
		case errmap.Retry:
			continue
		case errmap.Wait:
			if e := s.wait(ctx, errors.OpRecv, sub); e != nil {
				return total, s.record(e)
			}
			continue
		case errmap.CloseStream:
			if typ == inet.Stream {
				return total, s.remoteClosed(errors.OpRecv, errno)
			}
			return total, s.record(entry.Build(errors.OpRecv, errno, ""))
		case errmap.Close:
			e := entry.Build(errors.OpRecv, errno, "")
			s.closeWith(e)
			return total, s.record(e)
		default:
			return total, s.record(entry.Build(errors.OpRecv, errno, ""))
		}
	}
	s.metrics.op(errors.OpRecv)
	return total, nil
}

func (s *Socket) checkRecvState(op errors.Op, typ inet.SocketType) error {
	if !s.fd.valid() {
		return s.closedError(op)
	}
	st := s.State()
	switch typ {
	case inet.Stream:
		if st == Connected {
			return nil
		}
	case inet.Datagram:
		if st == Unconnected || st == Bound {
			return nil
		}
	default:
		return s.record(errors.Unsupported(op, "unknown socket type"))
	}
	return s.record(errors.New(op, errors.KindUnsupportedOperation).
		Detail("receive not supported in state %s", st).
		Build())
}

// remoteClosed records the peer closing a stream and closes the socket.
// errno is zero for an orderly shutdown.
func (s *Socket) remoteClosed(op errors.Op, errno unix.Errno) error {
	b := errors.New(op, errors.KindRemoteClosed).
		Address(s.PeerEndpoint().String()).
		Detail("The remote host closed the connection")
	if errno != 0 {
		b.Cause(errno)
	}
	e := b.Build()
	s.record(e)
	s.closeWith(e)
	return e
}

// Send writes b. Without all it returns after the first successful write;
// with all it keeps writing until every byte is sent or a terminal failure
// occurs, returning the count written so far.
//
// Broken pipes, resets and access failures close the socket. Oversized
// datagrams and buffer exhaustion fail without closing it.
func (s *Socket) Send(ctx context.Context, b []byte, all bool) (int, error) {
	if !s.fd.valid() {
		return 0, s.closedError(errors.OpSend)
	}
	typ := s.Type()
	flags := sendFlags
	if s.cfg.coalesce && typ == inet.Stream {
		flags |= moreFlag
	}

	sub, err := s.subscribe(errors.OpSend, reactor.Write)
	if err != nil {
		return 0, err
	}
	defer sub.Release()

	sent := 0
	for sent < len(b) {
		fd, ok := s.fd.acquire()
		if !ok {
			return sent, s.closedError(errors.OpSend)
		}
		n, err := unix.SendmsgN(fd, b[sent:], nil, nil, flags)
		s.fd.release()

		if err == nil {
			sent += n
			s.metrics.sent(n)
			if !all {
				break
			}
			continue
		}

		errno := errnoOf(err)
		entry := errmap.Lookup(errors.OpSend, errno)
		switch entry.Effect {
		case errmap.Retry:
			continue
		case errmap.Wait:
			if e := s.wait(ctx, errors.OpSend, sub); e != nil {
				return sent, s.record(e)
			}
			continue
		case errmap.Close, errmap.CloseStream:
			e := entry.Build(errors.OpSend, errno, s.PeerEndpoint().String())
			s.record(e)
			s.closeWith(e)
			return sent, e
		default:
			return sent, s.record(entry.Build(errors.OpSend, errno, s.PeerEndpoint().String()))
		}
	}
	s.metrics.op(errors.OpSend)
	return sent, nil
}

// SendTo sends one datagram to addr:port.
func (s *Socket) SendTo(ctx context.Context, b []byte, addr netip.Addr, port uint16) (int, error) {
	if !s.fd.valid() {
		return 0, s.closedError(errors.OpSendTo)
	}
	target := sockaddr.Format(addr, port)
	typ := s.Type()
	sa := s.codec.Encode(port, addr, s.Family())

	sub, err := s.subscribe(errors.OpSendTo, reactor.Write)
	if err != nil {
		return 0, err
	}
	defer sub.Release()

	for {
		fd, ok := s.fd.acquire()
		if !ok {
			return 0, s.closedError(errors.OpSendTo)
		}
		n, err := unix.SendmsgN(fd, b, nil, sa, sendFlags)
		s.fd.release()

		if err == nil {
			s.metrics.sent(n)
			s.metrics.op(errors.OpSendTo)
			return n, nil
		}

		errno := errnoOf(err)
		entry := errmap.Lookup(errors.OpSendTo, errno)
		switch entry.Effect {
		case errmap.Retry:
			continue
		case errmap.Wait:
			if e := s.wait(ctx, errors.OpSendTo, sub); e != nil {
				e.Address = target
				return 0, s.record(e)
			}
			continue
		case errmap.CloseStream:
			e := entry.Build(errors.OpSendTo, errno, target)
			if typ == inet.Stream {
				s.record(e)
				s.closeWith(e)
				return 0, e
			}
			return 0, s.record(e)
		case errmap.Close:
			e := entry.Build(errors.OpSendTo, errno, target)
			s.record(e)
			s.closeWith(e)
			return 0, e
		default:
			return 0, s.record(entry.Build(errors.OpSendTo, errno, target))
		}
	}
}

// RecvFrom receives one datagram into b and reports its source. Bytes past
// len(b) are discarded by the OS.
func (s *Socket) RecvFrom(ctx context.Context, b []byte) (int, Endpoint, error) {
	if !s.fd.valid() {
		return 0, Endpoint{}, s.closedError(errors.OpRecvFrom)
	}
	if len(b) == 0 {
		return 0, Endpoint{}, nil
	}
	typ := s.Type()

	sub, err := s.subscribe(errors.OpRecvFrom, reactor.Read)
	if err != nil {
		return 0, Endpoint{}, err
	}
	defer sub.Release()

	for {
		fd, ok := s.fd.acquire()
		if !ok {
			return 0, Endpoint{}, s.closedError(errors.OpRecvFrom)
		}
		n, from, err := unix.Recvfrom(fd, b, 0)
		s.fd.release()

		if err == nil {
			var src Endpoint
			if from != nil {
				src.Addr, src.Port, _ = s.codec.Decode(from)
			}
			if n == 0 && typ == inet.Stream {
				return 0, src, s.remoteClosed(errors.OpRecvFrom, unix.Errno(0))
			}
			s.metrics.received(n)
			s.metrics.op(errors.OpRecvFrom)
			return n, src, nil
		}

		errno := errnoOf(err)
		entry := errmap.Lookup(errors.OpRecvFrom, errno)
		switch entry.Effect {
		case errmap.Retry:
			continue
		case errmap.Wait:
			if e := s.wait(ctx, errors.OpRecvFrom, sub); e != nil {
				return 0, Endpoint{}, s.record(e)
			}
			continue
		case errmap.CloseStream:
			if typ == inet.Stream {
				return 0, Endpoint{}, s.remoteClosed(errors.OpRecvFrom, errno)
			}
			return 0, Endpoint{}, s.record(entry.Build(errors.OpRecvFrom, errno, ""))
		case errmap.Close:
			e := entry.Build(errors.OpRecvFrom, errno, "")
			s.record(e)
			s.closeWith(e)
			return 0, Endpoint{}, e
		default:
			return 0, Endpoint{}, s.record(entry.Build(errors.OpRecvFrom, errno, ""))
		}
	}
}
