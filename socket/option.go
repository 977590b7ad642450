package socket

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/errors"
	"github.com/wippyai/corosock/sockopt"
)

// GetOption reads a socket option. ok is false when the option has no
// mapping for this socket's family and type, when the descriptor is closed,
// or when the OS refuses the read.
func (s *Socket) GetOption(opt sockopt.Option) (value int, ok bool) {
	if v, ok := sockopt.Implicit(opt); ok {
		return v, s.fd.valid()
	}
	t, ok := sockopt.Resolve(opt, s.Family(), s.Type())
	if !ok {
		return 0, false
	}
	fd, ok := s.fd.acquire()
	if !ok {
		return 0, false
	}
	v, err := unix.GetsockoptInt(fd, t.Level, t.Name)
	s.fd.release()
	if err != nil {
		s.record(syscallError(errors.OpOption, err, opt.String()))
		return 0, false
	}
	return v, true
}

// SetOption writes a socket option. Booleans are 0 or 1. Options with no
// mapping for this socket's family and type fail as unsupported.
func (s *Socket) SetOption(opt sockopt.Option, value int) error {
	if !s.fd.valid() {
		return s.closedError(errors.OpOption)
	}
	if _, ok := sockopt.Implicit(opt); ok {
		return nil
	}
	t, ok := sockopt.Resolve(opt, s.Family(), s.Type())
	if !ok {
		return s.record(errors.New(errors.OpOption, errors.KindUnsupportedOperation).
			Address(opt.String()).
			Detail("option not supported for %s %s socket", s.Family(), s.Type()).
			Build())
	}
	fd, ok := s.fd.acquire()
	if !ok {
		return s.closedError(errors.OpOption)
	}
	err := unix.SetsockoptInt(fd, t.Level, t.Name, value)
	s.fd.release()
	if err != nil {
		return s.record(syscallError(errors.OpOption, err, opt.String()))
	}
	return nil
}
