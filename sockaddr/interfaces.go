package sockaddr

import "net"

// InterfaceResolver maps IPv6 scope ids to interface names and back.
type InterfaceResolver interface {
	IndexByName(name string) (int, bool)
	NameByIndex(index int) (string, bool)
}

// SystemInterfaces resolves scope ids against the host's network interfaces.
type SystemInterfaces struct{}

func (SystemInterfaces) IndexByName(name string) (int, bool) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, false
	}
	return ifi.Index, true
}

func (SystemInterfaces) NameByIndex(index int) (string, bool) {
	ifi, err := net.InterfaceByIndex(index)
	if err != nil {
		return "", false
	}
	return ifi.Name, true
}

// StaticInterfaces is a fixed name/index table, useful for tests and for
// hosts where interface enumeration is not permitted.
type StaticInterfaces map[string]int

func (s StaticInterfaces) IndexByName(name string) (int, bool) {
	idx, ok := s[name]
	return idx, ok
}

func (s StaticInterfaces) NameByIndex(index int) (string, bool) {
	for name, idx := range s {
		if idx == index {
			return name, true
		}
	}
	return "", false
}
