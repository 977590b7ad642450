//go:build darwin || freebsd || netbsd || openbsd

package socket

import "golang.org/x/sys/unix"

// pending returns the number of unread bytes queued on s.
func pending(s *Socket) (int, bool) {
	fd := s.Fd()
	if fd < 0 {
		return 0, false
	}
	n, err := unix.IoctlGetInt(fd, unix.FIONREAD)
	return n, err == nil
}
