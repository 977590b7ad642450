package socket

import (
	"context"
	stderrors "errors"
	"net/netip"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/inet"
	"github.com/wippyai/corosock/sockopt"
)

var loopback4 = netip.MustParseAddr("127.0.0.1")

func openSocket(t *testing.T, typ inet.SocketType, family inet.Family, opts ...Option) *Socket {
	t.Helper()
	s, err := New(typ, family, opts...)
	assert.NilError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func listener(t *testing.T, family inet.Family, addr netip.Addr) *Socket {
	t.Helper()
	l := openSocket(t, inet.Stream, family)
	assert.NilError(t, l.Bind(addr, 0, BindOptions{}))
	assert.NilError(t, l.Listen(16))
	assert.Equal(t, l.State(), Listening)
	return l
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// connectedPair returns a client and the server-side accepted socket.
func connectedPair(t *testing.T) (*Socket, *Socket) {
	t.Helper()
	ctx := testContext(t)
	l := listener(t, inet.IPv4, loopback4)
	client := openSocket(t, inet.Stream, inet.IPv4)

	var g errgroup.Group
	var server *Socket
	g.Go(func() error {
		var err error
		server, err = l.Accept(ctx)
		return err
	})
	assert.NilError(t, client.Connect(ctx, loopback4, l.LocalEndpoint().Port))
	assert.NilError(t, g.Wait())
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestNew(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.IPv4)
	assert.Equal(t, s.State(), Unconnected)
	assert.Equal(t, s.Type(), inet.Stream)
	assert.Equal(t, s.Family(), inet.IPv4)
	assert.Assert(t, s.IsValid())
	assert.Assert(t, s.Fd() >= 0)

	kind, msg := s.LastError()
	assert.Equal(t, kind, errors.Kind(""))
	assert.Equal(t, msg, "")
	assert.NilError(t, s.Err())
}

func TestNew_InvalidArguments(t *testing.T) {
	_, err := New(inet.UnknownType, inet.IPv4)
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidArgument)

	_, err = New(inet.Stream, inet.UnknownFamily)
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidArgument)
}

func TestClose_Idempotent(t *testing.T) {
	s := openSocket(t, inet.Datagram, inet.IPv4)
	assert.NilError(t, s.Bind(loopback4, 0, BindOptions{}))
	assert.Equal(t, s.State(), Bound)

	assert.NilError(t, s.Close())
	assert.NilError(t, s.Close())
	assert.Equal(t, s.State(), Unconnected)
	assert.Assert(t, !s.IsValid())
	assert.Equal(t, s.Fd(), -1)
	assert.Assert(t, s.LocalEndpoint().IsZero())

	err := s.Bind(loopback4, 0, BindOptions{})
	assert.Equal(t, errors.KindOf(err), errors.KindClosed)
	_, err = s.Send(context.Background(), []byte("x"), false)
	assert.Equal(t, errors.KindOf(err), errors.KindClosed)
}

func TestBind_EphemeralPort(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.IPv4)
	assert.NilError(t, s.Bind(loopback4, 0, BindOptions{}))
	local := s.LocalEndpoint()
	assert.Equal(t, local.Addr, loopback4)
	assert.Assert(t, local.Port != 0)
}

func TestBind_WrongState(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.IPv4)
	assert.NilError(t, s.Bind(loopback4, 0, BindOptions{}))

	err := s.Bind(loopback4, 0, BindOptions{})
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidState)
	kind, msg := s.LastError()
	assert.Equal(t, kind, errors.KindInvalidState)
	assert.Assert(t, msg != "")
}

func TestBind_AddressInUse(t *testing.T) {
	first := openSocket(t, inet.Stream, inet.IPv4)
	assert.NilError(t, first.Bind(loopback4, 0, BindOptions{}))
	assert.NilError(t, first.Listen(1))

	second := openSocket(t, inet.Stream, inet.IPv4)
	err := second.Bind(loopback4, first.LocalEndpoint().Port, BindOptions{})
	assert.Equal(t, errors.KindOf(err), errors.KindAddressInUse)
	assert.Assert(t, stderrors.Is(err, &errors.Error{Op: errors.OpBind, Kind: errors.KindAddressInUse}))
	assert.Assert(t, stderrors.Is(err, unix.EADDRINUSE))
	assert.Equal(t, second.State(), Unconnected)
}

func TestBind_DualStackAddressInUse(t *testing.T) {
	first := openSocket(t, inet.Datagram, inet.AnyIP)
	if first.Family() != inet.AnyIP {
		t.Skip("host has no IPv6 support")
	}
	assert.NilError(t, first.Bind(netip.Addr{}, 0, BindOptions{}))
	port := first.LocalEndpoint().Port

	second := openSocket(t, inet.Datagram, inet.AnyIP)
	err := second.Bind(netip.Addr{}, port, BindOptions{})
	assert.Equal(t, errors.KindOf(err), errors.KindAddressInUse)
}

func TestBind_DualStackReuse(t *testing.T) {
	first := openSocket(t, inet.Datagram, inet.AnyIP)
	if first.Family() != inet.AnyIP {
		t.Skip("host has no IPv6 support")
	}
	// SO_REUSEADDR on Linux only shares a UDP port when every socket sets it.
	reuse := BindOptions{ReuseAddress: true}
	assert.NilError(t, first.Bind(netip.Addr{}, 0, reuse))
	port := first.LocalEndpoint().Port

	second := openSocket(t, inet.Datagram, inet.AnyIP)
	assert.NilError(t, second.Bind(netip.Addr{}, port, reuse))
	assert.Equal(t, second.State(), Bound)
}

func TestBind_DualStackWildcard(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.AnyIP)
	if s.Family() != inet.AnyIP {
		t.Skip("host has no IPv6 support")
	}
	assert.NilError(t, s.Bind(netip.Addr{}, 0, BindOptions{}))
	assert.NilError(t, s.Listen(4))

	assert.Equal(t, s.Family(), inet.AnyIP)
	local := s.LocalEndpoint()
	assert.Assert(t, !local.Addr.IsValid(), "dual-stack wildcard should report no address, got %v", local.Addr)

	v6only, err := unix.GetsockoptInt(s.Fd(), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY)
	assert.NilError(t, err)
	assert.Equal(t, v6only, 0)

	// IPv4 clients reach a dual-stack listener.
	ctx := testContext(t)
	client := openSocket(t, inet.Stream, inet.IPv4)
	var g errgroup.Group
	g.Go(func() error {
		c, err := s.Accept(ctx)
		if err == nil {
			defer c.Close()
			if c.PeerEndpoint().Addr != loopback4 {
				return stderrors.New("peer is not the IPv4 client")
			}
		}
		return err
	})
	assert.NilError(t, client.Connect(ctx, loopback4, local.Port))
	assert.NilError(t, g.Wait())
}

func TestBind_IPv6Only(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.AnyIP)
	if s.Family() != inet.AnyIP {
		t.Skip("host has no IPv6 support")
	}
	assert.NilError(t, s.Bind(netip.Addr{}, 0, BindOptions{IPv6Only: true}))
	assert.NilError(t, s.Listen(1))

	v6only, err := unix.GetsockoptInt(s.Fd(), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY)
	assert.NilError(t, err)
	assert.Equal(t, v6only, 1)
	assert.Equal(t, s.Family(), inet.IPv6)
}

func TestConnect_Refused(t *testing.T) {
	// Reserve a port, then free it so nothing listens there.
	probe, err := New(inet.Stream, inet.IPv4)
	assert.NilError(t, err)
	assert.NilError(t, probe.Bind(loopback4, 0, BindOptions{}))
	port := probe.LocalEndpoint().Port
	probe.Close()

	s := openSocket(t, inet.Stream, inet.IPv4)
	err = s.Connect(testContext(t), loopback4, port)
	assert.Equal(t, errors.KindOf(err), errors.KindConnectionRefused)
	assert.Equal(t, s.State(), Unconnected)
	assert.Assert(t, s.IsValid())

	kind, msg := s.LastError()
	assert.Equal(t, kind, errors.KindConnectionRefused)
	assert.Equal(t, msg, "Connection refused")
}

func TestConnect_WrongState(t *testing.T) {
	l := listener(t, inet.IPv4, loopback4)
	err := l.Connect(context.Background(), loopback4, 1)
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidState)
	assert.Equal(t, l.State(), Listening)
}

func TestAcceptSuspendsUntilPeerConnects(t *testing.T) {
	ctx := testContext(t)
	l := listener(t, inet.IPv4, loopback4)

	type result struct {
		s   *Socket
		err error
	}
	accepted := make(chan result, 1)
	go func() {
		s, err := l.Accept(ctx)
		accepted <- result{s, err}
	}()

	select {
	case r := <-accepted:
		t.Fatalf("Accept returned without a peer: %v", r.err)
	case <-time.After(100 * time.Millisecond):
	}

	client := openSocket(t, inet.Stream, inet.IPv4)
	assert.NilError(t, client.Connect(ctx, loopback4, l.LocalEndpoint().Port))
	assert.Equal(t, client.State(), Connected)

	r := <-accepted
	assert.NilError(t, r.err)
	defer r.s.Close()

	assert.Equal(t, r.s.State(), Connected)
	assert.Equal(t, r.s.Type(), inet.Stream)
	assert.Equal(t, r.s.PeerEndpoint(), client.LocalEndpoint())
	assert.Equal(t, client.PeerEndpoint(), l.LocalEndpoint())
	assert.Equal(t, l.State(), Listening)
}

func TestAccept_WrongState(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.IPv4)
	_, err := s.Accept(context.Background())
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidState)

	u := openSocket(t, inet.Datagram, inet.IPv4)
	assert.NilError(t, u.Bind(loopback4, 0, BindOptions{}))
	err = u.Listen(1)
	assert.Equal(t, errors.KindOf(err), errors.KindUnsupportedOperation)
	assert.Equal(t, u.State(), Bound)
}

func TestAccept_Canceled(t *testing.T) {
	l := listener(t, inet.IPv4, loopback4)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := l.Accept(ctx)
	assert.Equal(t, errors.KindOf(err), errors.KindTimeout)
	assert.Assert(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, l.State(), Listening)
	assert.Assert(t, l.IsValid())
}

func TestCloseWakesAccept(t *testing.T) {
	l := listener(t, inet.IPv4, loopback4)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept(context.Background())
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	assert.NilError(t, l.Close())

	select {
	case err := <-done:
		assert.Equal(t, errors.KindOf(err), errors.KindClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Accept did not return after Close")
	}
}

func TestCloseWakesConnect(t *testing.T) {
	l := openSocket(t, inet.Stream, inet.IPv4)
	assert.NilError(t, l.Bind(loopback4, 0, BindOptions{}))
	assert.NilError(t, l.Listen(1))
	port := l.LocalEndpoint().Port

	// Nobody accepts, so once the queue is full new handshakes stall.
	var stalled *Socket
	for i := 0; i < 32 && stalled == nil; i++ {
		c := openSocket(t, inet.Stream, inet.IPv4)
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		err := c.Connect(ctx, loopback4, port)
		cancel()
		if errors.KindOf(err) == errors.KindTimeout {
			stalled = c
		}
	}
	if stalled == nil {
		t.Skip("kernel completed every handshake on a full backlog")
	}
	assert.Equal(t, stalled.State(), Connecting)

	done := make(chan error, 1)
	go func() {
		done <- stalled.Connect(context.Background(), loopback4, port)
	}()
	time.Sleep(50 * time.Millisecond)
	assert.NilError(t, stalled.Close())

	select {
	case err := <-done:
		assert.Equal(t, errors.KindOf(err), errors.KindClosed)
		assert.Equal(t, stalled.State(), Unconnected)
		kind, _ := stalled.LastError()
		assert.Equal(t, kind, errors.KindClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Connect did not return after Close")
	}
}

func TestOptions(t *testing.T) {
	s := openSocket(t, inet.Stream, inet.IPv4)

	assert.NilError(t, s.SetOption(sockopt.LowDelay, 1))
	v, ok := s.GetOption(sockopt.LowDelay)
	assert.Assert(t, ok)
	assert.Assert(t, v != 0)

	assert.NilError(t, s.SetOption(sockopt.KeepAlive, 1))
	v, ok = s.GetOption(sockopt.KeepAlive)
	assert.Assert(t, ok)
	assert.Assert(t, v != 0)

	// Broadcast is implicit and never touches the descriptor.
	v, ok = s.GetOption(sockopt.Broadcast)
	assert.Assert(t, ok)
	assert.Equal(t, v, 1)
	assert.NilError(t, s.SetOption(sockopt.Broadcast, 0))

	_, ok = s.GetOption(sockopt.MaxStreams)
	assert.Assert(t, !ok)
	err := s.SetOption(sockopt.MaxStreams, 1)
	assert.Equal(t, errors.KindOf(err), errors.KindUnsupportedOperation)

	s.Close()
	_, ok = s.GetOption(sockopt.KeepAlive)
	assert.Assert(t, !ok)
	err = s.SetOption(sockopt.KeepAlive, 1)
	assert.Equal(t, errors.KindOf(err), errors.KindClosed)
}

func TestOptions_FamilySpecific(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("multicast options take a byte on BSD")
	}
	v4 := openSocket(t, inet.Datagram, inet.IPv4)
	assert.NilError(t, v4.SetOption(sockopt.MulticastTTL, 4))
	v, ok := v4.GetOption(sockopt.MulticastTTL)
	assert.Assert(t, ok)
	assert.Equal(t, v, 4)
	assert.NilError(t, v4.SetOption(sockopt.TypeOfService, 0x10))

	v6 := openSocket(t, inet.Datagram, inet.AnyIP)
	if v6.Family() != inet.AnyIP {
		t.Skip("host has no IPv6 support")
	}
	assert.NilError(t, v6.SetOption(sockopt.MulticastTTL, 5))
	v, ok = v6.GetOption(sockopt.MulticastTTL)
	assert.Assert(t, ok)
	assert.Equal(t, v, 5)

	err := v6.SetOption(sockopt.TypeOfService, 0x10)
	assert.Equal(t, errors.KindOf(err), errors.KindUnsupportedOperation)
}

func TestShutdown(t *testing.T) {
	client, server := connectedPair(t)
	assert.NilError(t, client.Shutdown(ShutdownWrite))

	buf := make([]byte, 8)
	n, err := server.Recv(testContext(t), buf, false)
	assert.Equal(t, n, 0)
	assert.Equal(t, errors.KindOf(err), errors.KindRemoteClosed)

	u := openSocket(t, inet.Datagram, inet.IPv4)
	err = u.Shutdown(ShutdownBoth)
	assert.Equal(t, errors.KindOf(err), errors.KindUnsupportedOperation)

	idle := openSocket(t, inet.Stream, inet.IPv4)
	err = idle.Shutdown(ShutdownBoth)
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidState)
}

func TestFromDescriptor(t *testing.T) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	assert.NilError(t, err)
	assert.NilError(t, unix.Bind(fd, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}))
	assert.NilError(t, unix.Listen(fd, 4))

	l, err := FromDescriptor(fd)
	assert.NilError(t, err)
	defer l.Close()
	assert.Equal(t, l.State(), Listening)
	assert.Equal(t, l.Type(), inet.Stream)
	assert.Equal(t, l.Family(), inet.IPv4)
	assert.Equal(t, l.LocalEndpoint().Addr, loopback4)

	ctx := testContext(t)
	client := openSocket(t, inet.Stream, inet.IPv4)
	var g errgroup.Group
	g.Go(func() error {
		c, err := l.Accept(ctx)
		if err == nil {
			c.Close()
		}
		return err
	})
	assert.NilError(t, client.Connect(ctx, loopback4, l.LocalEndpoint().Port))
	assert.NilError(t, g.Wait())

	dup, err := unix.Dup(client.Fd())
	assert.NilError(t, err)
	adopted, err := FromDescriptor(dup)
	assert.NilError(t, err)
	defer adopted.Close()
	assert.Equal(t, adopted.State(), Connected)
	assert.Equal(t, adopted.PeerEndpoint(), client.PeerEndpoint())

	_, err = FromDescriptor(-1)
	assert.Equal(t, errors.KindOf(err), errors.KindInvalidArgument)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(nil)
	s := openSocket(t, inet.Stream, inet.IPv4, WithMetrics(m))
	assert.Check(t, is.Equal(testutil.ToFloat64(m.open), 1.0))

	assert.NilError(t, s.Bind(loopback4, 0, BindOptions{}))
	assert.Assert(t, s.Bind(loopback4, 0, BindOptions{}) != nil)
	assert.Check(t, is.Equal(testutil.ToFloat64(m.ops.WithLabelValues("bind")), 1.0))
	assert.Check(t, is.Equal(testutil.ToFloat64(m.failures.WithLabelValues("bind", "invalid_state")), 1.0))

	s.Close()
	s.Close()
	assert.Check(t, is.Equal(testutil.ToFloat64(m.open), 0.0))
	assert.Check(t, is.Equal(testutil.ToFloat64(m.ops.WithLabelValues("close")), 1.0))
}
