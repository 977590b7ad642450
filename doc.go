// Package corosock provides non-blocking TCP and UDP sockets for code that
// runs as many cooperative goroutines over one event loop.
//
// Every blocking operation (connect, accept, send, receive) tries the system
// call first and, when the kernel reports it would block, suspends the
// calling goroutine on a readiness subscription instead of blocking an OS
// thread. Closing a socket wakes every goroutine suspended on it.
//
// # Packages
//
//	corosock/            Dial and Listen helpers over the socket package
//	├── socket/          Socket state machine and stream adapter
//	├── reactor/         Readiness subscriptions over poll(2)
//	├── sockaddr/        netip address and port to OS socket address codec
//	├── sockopt/         Logical socket options to OS level and name
//	├── inet/            Address family and socket type enums
//	├── errors/          Structured socket errors
//	└── registry/        Handle table used to track live sockets
//
// # Quick Start
//
// Accept connections and echo them back:
//
//	l, err := corosock.ListenTCP(netip.Addr{}, 7000, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Close()
//
//	for {
//	    c, err := l.Accept(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    go func() {
//	        st := socket.NewStream(ctx, c)
//	        defer st.Close()
//	        io.Copy(st, st)
//	    }()
//	}
//
// # Errors
//
// Failures are *errors.Error values carrying the operation, a portable
// kind and the OS cause:
//
//	if errors.KindOf(err) == errors.KindRemoteClosed {
//	    // peer went away
//	}
//
// # Zero address
//
// The zero netip.Addr stands for the dual-stack wildcard. Binding it on an
// AnyIP socket accepts IPv4 and IPv6 peers on one port.
package corosock
