package sockaddr

import (
	"net/netip"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/inet"
)

var testInterfaces = StaticInterfaces{"lo": 1, "eth0": 2}

func TestEncode_Forms(t *testing.T) {
	c := Codec{Interfaces: testInterfaces}

	tests := []struct {
		name   string
		addr   string
		pref   inet.Family
		want6  bool
		zoneID uint32
	}{
		{"ipv4 on ipv4 socket", "192.0.2.1", inet.IPv4, false, 0},
		{"ipv4 on dual-stack socket", "192.0.2.1", inet.AnyIP, true, 0},
		{"ipv4 on ipv6 socket", "127.0.0.1", inet.IPv6, true, 0},
		{"ipv6 on ipv4 preference", "2001:db8::1", inet.IPv4, true, 0},
		{"mapped on ipv4 socket", "::ffff:10.0.0.1", inet.IPv4, false, 0},
		{"numeric scope", "fe80::1%7", inet.IPv6, true, 7},
		{"named scope", "fe80::1%eth0", inet.IPv6, true, 2},
		{"unknown scope", "fe80::1%nope0", inet.IPv6, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa := c.Encode(4242, netip.MustParseAddr(tt.addr), tt.pref)
			switch sa := sa.(type) {
			case *unix.SockaddrInet6:
				if !tt.want6 {
					t.Fatalf("got IPv6 form, want IPv4")
				}
				if sa.Port != 4242 {
					t.Errorf("port = %d, want 4242", sa.Port)
				}
				if sa.ZoneId != tt.zoneID {
					t.Errorf("zone id = %d, want %d", sa.ZoneId, tt.zoneID)
				}
			case *unix.SockaddrInet4:
				if tt.want6 {
					t.Fatalf("got IPv4 form, want IPv6")
				}
				if sa.Port != 4242 {
					t.Errorf("port = %d, want 4242", sa.Port)
				}
			default:
				t.Fatalf("unexpected sockaddr %T", sa)
			}
		})
	}
}

func TestEncode_Unspecified(t *testing.T) {
	sa4, ok := Encode(80, netip.Addr{}, inet.IPv4).(*unix.SockaddrInet4)
	if !ok {
		t.Fatal("expected IPv4 form")
	}
	if sa4.Addr != [4]byte{} {
		t.Errorf("addr = %v, want wildcard", sa4.Addr)
	}

	sa6, ok := Encode(80, netip.Addr{}, inet.AnyIP).(*unix.SockaddrInet6)
	if !ok {
		t.Fatal("expected IPv6 form")
	}
	if sa6.Addr != [16]byte{} {
		t.Errorf("addr = %v, want wildcard", sa6.Addr)
	}
}

func TestEncodeIPv4(t *testing.T) {
	sa := EncodeIPv4(53, netip.MustParseAddr("::ffff:198.51.100.7"))
	if sa.Addr != [4]byte{198, 51, 100, 7} {
		t.Errorf("addr = %v", sa.Addr)
	}
	sa = EncodeIPv4(53, netip.MustParseAddr("2001:db8::1"))
	if sa.Addr != [4]byte{} {
		t.Errorf("non-convertible address should become wildcard, got %v", sa.Addr)
	}
}

func TestRoundTrip(t *testing.T) {
	c := Codec{Interfaces: testInterfaces}

	tests := []struct {
		addr string
		pref inet.Family
		want string
	}{
		{"127.0.0.1", inet.IPv4, "127.0.0.1"},
		{"127.0.0.1", inet.AnyIP, "127.0.0.1"},
		{"::1", inet.IPv6, "::1"},
		{"2001:db8::42", inet.AnyIP, "2001:db8::42"},
		{"fe80::1%eth0", inet.IPv6, "fe80::1%eth0"},
		// numeric scope renders as the interface name once resolvable
		{"fe80::1%2", inet.IPv6, "fe80::1%eth0"},
		{"fe80::1%9", inet.IPv6, "fe80::1%9"},
		// mapped addresses normalise to IPv4 on the way back
		{"::ffff:10.0.0.1", inet.IPv6, "10.0.0.1"},
		{"::ffff:10.0.0.1", inet.AnyIP, "10.0.0.1"},
		{"::ffff:10.0.0.1", inet.IPv4, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			for _, port := range []uint16{0, 1, 8080, 65535} {
				sa := c.Encode(port, netip.MustParseAddr(tt.addr), tt.pref)
				addr, gotPort, ok := c.Decode(sa)
				if !ok {
					t.Fatal("Decode failed")
				}
				if gotPort != port {
					t.Errorf("port = %d, want %d", gotPort, port)
				}
				if addr != netip.MustParseAddr(tt.want) {
					t.Errorf("addr = %v, want %v", addr, tt.want)
				}
			}
		})
	}
}

func TestDecode_Unsupported(t *testing.T) {
	if _, _, ok := Decode(&unix.SockaddrUnix{Name: "/tmp/x"}); ok {
		t.Error("Decode should reject AF_UNIX")
	}
}

func TestFamily(t *testing.T) {
	if Family(&unix.SockaddrInet4{}) != inet.IPv4 {
		t.Error("expected IPv4")
	}
	if Family(&unix.SockaddrInet6{}) != inet.IPv6 {
		t.Error("expected IPv6")
	}
	if Family(&unix.SockaddrUnix{}) != inet.UnknownFamily {
		t.Error("expected UnknownFamily")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		addr netip.Addr
		port uint16
		want string
	}{
		{netip.MustParseAddr("10.1.2.3"), 80, "10.1.2.3:80"},
		{netip.MustParseAddr("::1"), 443, "[::1]:443"},
		{netip.MustParseAddr("fe80::1%eth0"), 1, "[fe80::1%eth0]:1"},
		{netip.Addr{}, 9, "*:9"},
	}
	for _, tt := range tests {
		if got := Format(tt.addr, tt.port); got != tt.want {
			t.Errorf("Format(%v, %d) = %q, want %q", tt.addr, tt.port, got, tt.want)
		}
	}
}
