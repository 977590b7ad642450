package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	sendFlags = unix.MSG_NOSIGNAL
	moreFlag  = unix.MSG_MORE
)

// sysSocket creates a non-blocking close-on-exec socket. Kernels older than
// 2.6.27 reject the type flags with EINVAL, in which case the flags are set
// separately.
func sysSocket(domain, sotype int) (int, error) {
	fd, err := unix.Socket(domain, sotype|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != unix.EINVAL {
		return fd, err
	}

	syscall.ForkLock.RLock()
	fd, err = unix.Socket(domain, sotype, 0)
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

// sysAccept accepts a connection as a non-blocking close-on-exec descriptor.
func sysAccept(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	switch err {
	case nil:
		return nfd, sa, nil
	case unix.ENOSYS, unix.EINVAL, unix.EACCES, unix.EFAULT:
		// accept4 missing or rejecting the flags; fall through.
	default:
		return -1, nil, err
	}
	return acceptFallback(fd)
}
