//go:build darwin || freebsd || netbsd || openbsd

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	sendFlags = 0
	moreFlag  = 0
)

// sysSocket creates a non-blocking close-on-exec socket. The flags are set
// after creation while holding the fork lock. Broken-pipe writes rely on the
// process ignoring SIGPIPE.
func sysSocket(domain, sotype int) (int, error) {
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(domain, sotype, 0)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func sysAccept(fd int) (int, unix.Sockaddr, error) {
	return acceptFallback(fd)
}
