package socket

import (
	"context"
	stderrors "errors"
	"net/netip"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/inet"
	"github.com/wippyai/corosock/reactor"
	"github.com/wippyai/corosock/sockaddr"
	"github.com/wippyai/corosock/socket/internal/errmap"
	"github.com/wippyai/corosock/socket/internal/sysinit"
)

// Socket is one TCP or UDP descriptor and its connection state.
type Socket struct {
	fd      descriptor
	reactor reactor.Reactor
	codec   sockaddr.Codec
	logger  *zap.Logger
	metrics *Metrics
	cfg     config

	mu         sync.Mutex
	state      State
	family     inet.Family
	typ        inet.SocketType
	local      Endpoint
	peer       Endpoint
	lastErr    *errors.Error
	closeCause *errors.Error
}

// New creates an unconnected socket of the given type and family. A
// dual-stack request falls back to IPv4 when the host has no IPv6 support.
func New(typ inet.SocketType, family inet.Family, opts ...Option) (*Socket, error) {
	if typ != inet.Stream && typ != inet.Datagram {
		return nil, errors.InvalidArgument(errors.OpCreate, "unknown socket type")
	}
	if family == inet.UnknownFamily {
		return nil, errors.InvalidArgument(errors.OpCreate, "unknown address family")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, errors.Wrap(errors.OpCreate, errors.KindResourceExhausted, err, "reactor unavailable")
	}

	sysinit.IgnoreSIGPIPE()

	fd, err := sysSocket(family.Domain(), typ.Sotype())
	if err == unix.EAFNOSUPPORT && family == inet.AnyIP {
		cfg.logger.Debug("dual-stack socket unsupported, using ipv4", zap.Stringer("type", typ))
		family = inet.IPv4
		fd, err = sysSocket(family.Domain(), typ.Sotype())
	}
	if err != nil {
		e := syscallError(errors.OpCreate, err, "")
		cfg.metrics.failure(errors.OpCreate, e.Kind)
		return nil, e
	}

	s := newSocket(fd, typ, family, cfg)
	s.logger.Debug("socket created")
	return s, nil
}

// FromDescriptor adopts an open TCP or UDP descriptor. The socket takes
// ownership of fd. Its state is derived from the descriptor: listening,
// connected, bound or unconnected.
func FromDescriptor(fd int, opts ...Option) (*Socket, error) {
	if fd < 0 {
		return nil, errors.InvalidArgument(errors.OpCreate, "invalid descriptor")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, errors.Wrap(errors.OpCreate, errors.KindResourceExhausted, err, "reactor unavailable")
	}

	sysinit.IgnoreSIGPIPE()

	sotype, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
	if err != nil {
		return nil, errors.Wrap(errors.OpCreate, errors.KindUnsupportedOperation, err, "not a socket")
	}
	typ := inet.TypeFromSotype(sotype)
	if typ == inet.UnknownType {
		return nil, errors.Unsupported(errors.OpCreate, "socket type")
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errors.Wrap(errors.OpCreate, errors.KindUnsupportedOperation, err, "set non-blocking")
	}
	unix.CloseOnExec(fd)

	lsa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, errors.Wrap(errors.OpCreate, errors.KindUnsupportedOperation, err, "query local address")
	}
	family := sockaddr.Family(lsa)
	if family == inet.UnknownFamily {
		return nil, errors.Unsupported(errors.OpCreate, "address family")
	}

	s := newSocket(fd, typ, family, cfg)
	s.fetchConnectionParameters()

	s.mu.Lock()
	switch {
	case typ == inet.Stream && acceptsConnections(fd):
		s.state = Listening
	case s.peer.Port != 0:
		s.state = Connected
	case s.local.Port != 0:
		s.state = Bound
	}
	state := s.state
	s.mu.Unlock()

	s.logger.Debug("descriptor adopted", zap.Stringer("state", state))
	return s, nil
}

func acceptsConnections(fd int) bool {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ACCEPTCONN)
	return err == nil && v != 0
}

func newSocket(fd int, typ inet.SocketType, family inet.Family, cfg config) *Socket {
	s := &Socket{
		reactor: cfg.reactor,
		codec:   sockaddr.Codec{Interfaces: cfg.interfaces},
		logger:  cfg.logger.With(zap.Int("fd", fd)),
		metrics: cfg.metrics,
		cfg:     cfg,
		family:  family,
		typ:     typ,
	}
	s.fd.init(fd)
	s.metrics.opened()
	return s
}

// Introspection

// State returns the current connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Type returns the transport type.
func (s *Socket) Type() inet.SocketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typ
}

// Family returns the effective address family. It changes to IPv4 when a
// dual-stack request had to fall back, and to AnyIP when a wildcard IPv6
// socket turns out to accept both families.
func (s *Socket) Family() inet.Family {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.family
}

// LocalEndpoint returns the bound local address and port.
func (s *Socket) LocalEndpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// PeerEndpoint returns the connected peer's address and port.
func (s *Socket) PeerEndpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

// LastError returns the kind and description of the most recent failure.
// Successful operations do not clear it.
func (s *Socket) LastError() (errors.Kind, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return "", ""
	}
	return s.lastErr.Kind, s.lastErr.Detail
}

// Err returns the most recent failure, or nil.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	return s.lastErr
}

// IsValid reports whether the socket still owns an open descriptor.
func (s *Socket) IsValid() bool {
	return s.fd.valid()
}

// Fd returns the descriptor number, or -1 once closed. The socket keeps
// ownership.
func (s *Socket) Fd() int {
	fd, ok := s.fd.acquire()
	if !ok {
		return -1
	}
	s.fd.release()
	return fd
}

// Close releases the descriptor. Goroutines suspended on it are woken and
// return with whatever they have transferred. Close is idempotent.
func (s *Socket) Close() error {
	fd, ok := s.fd.detach()
	if !ok {
		return nil
	}
	s.reactor.WakeAll(fd)
	err := unix.Close(fd)

	s.mu.Lock()
	prev := s.state
	s.state = Unconnected
	s.local = Endpoint{}
	s.peer = Endpoint{}
	s.mu.Unlock()

	s.metrics.closed()
	s.metrics.op(errors.OpClose)
	s.logger.Debug("socket closed", zap.Stringer("from", prev))

	if err != nil && err != unix.EINTR {
		return s.record(errors.Wrap(errors.OpClose, errors.KindNetwork, err, "close descriptor"))
	}
	return nil
}

// ShutdownMode selects which halves of a connection Shutdown closes.
type ShutdownMode int

const (
	ShutdownRead  ShutdownMode = unix.SHUT_RD
	ShutdownWrite ShutdownMode = unix.SHUT_WR
	ShutdownBoth  ShutdownMode = unix.SHUT_RDWR
)

// Shutdown disables further receives, sends or both on a connected stream
// socket. The descriptor stays open until Close.
func (s *Socket) Shutdown(how ShutdownMode) error {
	if s.Type() != inet.Stream {
		return s.record(errors.Unsupported(errors.OpShutdown, "shutdown on a datagram socket"))
	}
	if st := s.State(); st != Connected {
		return s.record(errors.InvalidState(errors.OpShutdown, st.String()))
	}
	fd, ok := s.fd.acquire()
	if !ok {
		return s.closedError(errors.OpShutdown)
	}
	err := unix.Shutdown(fd, int(how))
	s.fd.release()
	if err != nil {
		e := syscallError(errors.OpShutdown, err, s.PeerEndpoint().String())
		if errmap.Lookup(errors.OpShutdown, errnoOf(err)).Effect == errmap.Close {
			s.closeWith(e)
		}
		return s.record(e)
	}
	s.metrics.op(errors.OpShutdown)
	return nil
}

// fetchConnectionParameters refreshes the local and peer endpoints, the
// effective family and the socket type from the OS.
func (s *Socket) fetchConnectionParameters() {
	fd, ok := s.fd.acquire()
	if !ok {
		return
	}
	defer s.fd.release()

	lsa, err := unix.Getsockname(fd)
	if err != nil {
		s.logger.Debug("getsockname failed", zap.Error(err))
		return
	}
	laddr, lport, _ := s.codec.Decode(lsa)
	family := sockaddr.Family(lsa)

	// A wildcard IPv6 socket with IPV6_V6ONLY cleared carries both families.
	// Linux reports "::", BSDs report "::ffff:0.0.0.0".
	if family == inet.IPv6 && laddr.IsUnspecified() {
		v6only, err := unix.GetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY)
		switch {
		case err != nil:
			s.logger.Warn("cannot read IPV6_V6ONLY", zap.Error(err))
		case v6only == 0:
			family = inet.AnyIP
			laddr = netip.Addr{}
		}
	}

	var peer Endpoint
	if psa, err := unix.Getpeername(fd); err == nil {
		peer.Addr, peer.Port, _ = s.codec.Decode(psa)
	}

	typ := inet.UnknownType
	if sotype, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE); err == nil {
		typ = inet.TypeFromSotype(sotype)
	}

	s.mu.Lock()
	s.local = Endpoint{Addr: laddr, Port: lport}
	s.peer = peer
	s.family = family
	if typ != inet.UnknownType {
		s.typ = typ
	}
	s.mu.Unlock()
}

// Failure handling

// record stores e as the last error and counts it.
func (s *Socket) record(e *errors.Error) error {
	s.mu.Lock()
	s.lastErr = e
	s.mu.Unlock()
	s.metrics.failure(e.Op, e.Kind)
	s.logger.Debug("operation failed",
		zap.String("op", string(e.Op)),
		zap.String("kind", string(e.Kind)),
		zap.Error(e.Cause))
	return e
}

// closeWith closes the descriptor after a fatal failure and remembers why.
func (s *Socket) closeWith(cause *errors.Error) {
	s.mu.Lock()
	if s.closeCause == nil {
		s.closeCause = cause
	}
	s.mu.Unlock()
	s.Close()
}

// closedError is returned and recorded by operations on a closed socket. It
// wraps the failure that closed the socket, if any, so errors.Is still
// matches it and the detail keeps the original diagnosis.
func (s *Socket) closedError(op errors.Op) error {
	e := errors.Closed(op)
	s.mu.Lock()
	if s.closeCause != nil {
		e.Cause = s.closeCause
		e.Detail = e.Detail + ": " + s.closeCause.Detail
	}
	s.mu.Unlock()
	return s.record(e)
}

// wait suspends on sub. A nil return means retry the syscall.
func (s *Socket) wait(ctx context.Context, op errors.Op, sub reactor.Subscription) *errors.Error {
	err := sub.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		kind := errors.KindCanceled
		if stderrors.Is(err, context.DeadlineExceeded) {
			kind = errors.KindTimeout
		}
		return errors.Wrap(op, kind, err, "operation canceled")
	}
	return errors.Wrap(op, errors.KindNetwork, err, "reactor unavailable")
}

// subscribe registers interest in dir on the socket's descriptor.
func (s *Socket) subscribe(op errors.Op, dir reactor.Direction) (reactor.Subscription, error) {
	fd, ok := s.fd.acquire()
	if !ok {
		return nil, s.closedError(op)
	}
	s.fd.release()
	sub, err := s.reactor.Subscribe(fd, dir)
	if err != nil {
		return nil, s.record(errors.Wrap(op, errors.KindNetwork, err, "reactor unavailable"))
	}
	return sub, nil
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if stderrors.As(err, &errno) {
		return errno
	}
	return 0
}

// syscallError classifies a raw syscall failure for op.
func syscallError(op errors.Op, err error, addr string) *errors.Error {
	errno := errnoOf(err)
	if errno == 0 {
		return errors.Wrap(op, errors.KindUnknown, err, "")
	}
	return errmap.Lookup(op, errno).Build(op, errno, addr)
}
