package reactor

import (
	"context"
	"errors"
)

// ErrClosed is returned by a reactor that has been shut down.
var ErrClosed = errors.New("reactor: closed")

// Direction selects which readiness a subscription waits for.
type Direction uint8

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// Reactor multiplexes descriptor readiness for suspended tasks.
type Reactor interface {
	// Subscribe registers interest in dir on fd. The subscription must be
	// released when the caller's retry loop exits.
	Subscribe(fd int, dir Direction) (Subscription, error)

	// WakeAll resumes every task waiting on fd, in either direction, and
	// marks their subscriptions woken. Subsequent Wait calls on those
	// subscriptions return immediately.
	WakeAll(fd int)
}

// Subscription is a registered interest in one direction of one descriptor.
type Subscription interface {
	// Wait suspends until the descriptor is ready, the subscription is
	// woken, or ctx is done. Wait may return nil spuriously; callers retry
	// their syscall and wait again on would-block.
	Wait(ctx context.Context) error

	// Release drops the registration. It is safe to call more than once.
	Release()
}
