package socket

import "sync"

// descriptor is the OS handle owned by exactly one Socket.
//
// Syscalls run under the read lock; they are non-blocking and short. Close
// takes the write lock, so a descriptor number is never released while a
// syscall is using it.
type descriptor struct {
	mu    sync.RWMutex
	sysfd int
}

func (d *descriptor) init(fd int) {
	d.sysfd = fd
}

// acquire holds the descriptor open until release. ok is false once the
// descriptor has been detached.
func (d *descriptor) acquire() (fd int, ok bool) {
	d.mu.RLock()
	if d.sysfd < 0 {
		d.mu.RUnlock()
		return -1, false
	}
	return d.sysfd, true
}

func (d *descriptor) release() {
	d.mu.RUnlock()
}

func (d *descriptor) valid() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sysfd >= 0
}

// detach marks the descriptor invalid and hands the number to the caller,
// who becomes responsible for closing it.
func (d *descriptor) detach() (fd int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fd = d.sysfd
	d.sysfd = -1
	return fd, fd >= 0
}
