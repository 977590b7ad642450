// Package sockaddr converts between logical socket endpoints and the binary
// socket addresses understood by the OS.
//
// A logical endpoint is a netip.Addr plus a port. The IPv6 zone of the
// address carries the scope: either an interface name ("eth0") or a numeric
// scope id ("3"). The zero netip.Addr stands for the unspecified "any"
// address of whatever family the socket uses.
//
//	sa := sockaddr.Encode(8080, netip.MustParseAddr("fe80::1%eth0"), inet.IPv6)
//	addr, port, ok := sockaddr.Decode(sa)
//
// IPv4-mapped IPv6 addresses decode to their plain IPv4 form so that an
// endpoint observed on a dual-stack socket compares equal to the same
// endpoint observed on an IPv4 socket.
package sockaddr
