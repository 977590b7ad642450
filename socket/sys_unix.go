package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// acceptFallback sets close-on-exec and non-blocking after accepting. A fork
// racing the accept itself can still inherit the descriptor.
func acceptFallback(fd int) (int, unix.Sockaddr, error) {
	syscall.ForkLock.RLock()
	nfd, sa, err := unix.Accept(fd)
	if err == nil {
		unix.CloseOnExec(nfd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, nil, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, nil, err
	}
	return nfd, sa, nil
}
