package reactor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Poller is a Reactor backed by a poll(2) loop running on its own goroutine.
type Poller struct {
	mu      sync.Mutex
	subs    map[int]map[*subscription]struct{}
	wakefds [2]int
	closed  bool
	done    chan struct{}
	exited  chan struct{}
	logger  *zap.Logger
	poll    func(fds []unix.PollFd, timeout int) (int, error)

	// reused by the loop goroutine only
	pollfds []unix.PollFd
	polled  [][]*subscription
}

var _ Reactor = (*Poller)(nil)

// New starts a poller.
func New() (*Poller, error) {
	return start(unix.Poll)
}

func start(poll func([]unix.PollFd, int) (int, error)) (*Poller, error) {
	p := &Poller{
		subs:   make(map[int]map[*subscription]struct{}),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: Logger().Named("poller"),
		poll:   poll,
	}
	if err := pipe(p.wakefds[:]); err != nil {
		return nil, err
	}
	go p.loop()
	return p, nil
}

var (
	defaultPoller    *Poller
	defaultPollerErr error
	defaultOnce      sync.Once
)

// Default returns the process-wide poller, starting it on first use.
func Default() (*Poller, error) {
	defaultOnce.Do(func() {
		defaultPoller, defaultPollerErr = New()
	})
	return defaultPoller, defaultPollerErr
}

// Subscribe implements Reactor.
func (p *Poller) Subscribe(fd int, dir Direction) (Subscription, error) {
	if fd < 0 {
		return nil, unix.EBADF
	}
	s := &subscription{
		p:     p,
		fd:    fd,
		dir:   dir,
		ready: make(chan struct{}, 1),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	set, ok := p.subs[fd]
	if !ok {
		set = make(map[*subscription]struct{})
		p.subs[fd] = set
	}
	set[s] = struct{}{}
	return s, nil
}

// WakeAll implements Reactor.
func (p *Poller) WakeAll(fd int) {
	p.mu.Lock()
	set := p.subs[fd]
	delete(p.subs, fd)
	for s := range set {
		s.woken = true
		s.armed = false
		s.signal()
	}
	p.mu.Unlock()

	if len(set) > 0 {
		p.logger.Debug("woke waiters", zap.Int("fd", fd), zap.Int("count", len(set)))
	}
	p.notify()
}

// Close stops the loop goroutine. Tasks suspended in Wait return ErrClosed.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.notify()
	<-p.exited
	return nil
}

// arm puts s into the next poll set. It reports false if s was woken and
// should not wait at all.
func (p *Poller) arm(s *subscription) (bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, ErrClosed
	}
	if s.woken {
		p.mu.Unlock()
		return false, nil
	}
	if s.released {
		p.mu.Unlock()
		return false, unix.EBADF
	}
	s.armed = true
	p.mu.Unlock()

	p.notify()
	return true, nil
}

func (p *Poller) disarm(s *subscription) {
	p.mu.Lock()
	s.armed = false
	p.mu.Unlock()
}

func (p *Poller) release(s *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.released = true
	s.armed = false
	if set, ok := p.subs[s.fd]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(p.subs, s.fd)
		}
	}
}

// notify interrupts a blocked poll so the loop rebuilds its set.
func (p *Poller) notify() {
	b := [1]byte{1}
	for {
		_, err := unix.Write(p.wakefds[1], b[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means a wakeup is already pending.
		return
	}
}

func (p *Poller) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.wakefds[0], buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil || n < len(buf) {
			return
		}
	}
}

func (p *Poller) loop() {
	defer func() {
		unix.Close(p.wakefds[0])
		unix.Close(p.wakefds[1])
		close(p.exited)
	}()

	var backoff time.Duration
	for {
		p.build()

		_, err := p.poll(p.pollfds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			backoff = min(max(2*backoff, minBackoff), maxBackoff)
			p.logger.Warn("poll failed",
				zap.Error(err),
				zap.Int("fds", len(p.pollfds)),
				zap.Duration("retry", backoff))
			select {
			case <-p.done:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		if p.pollfds[0].Revents != 0 {
			p.drain()
			select {
			case <-p.done:
				return
			default:
			}
		}
		p.dispatch()
	}
}

// build snapshots the armed subscriptions into the poll set. Slot 0 is the
// wake pipe.
func (p *Poller) build() {
	p.pollfds = p.pollfds[:0]
	p.polled = p.polled[:0]
	p.pollfds = append(p.pollfds, unix.PollFd{
		Fd:     int32(p.wakefds[0]),
		Events: unix.POLLIN,
	})
	p.polled = append(p.polled, nil)

	p.mu.Lock()
	defer p.mu.Unlock()
	for fd, set := range p.subs {
		var events int16
		var armed []*subscription
		for s := range set {
			if !s.armed {
				continue
			}
			armed = append(armed, s)
			if s.dir == Write {
				events |= unix.POLLOUT
			} else {
				events |= unix.POLLIN
			}
		}
		if len(armed) == 0 {
			continue
		}
		p.pollfds = append(p.pollfds, unix.PollFd{Fd: int32(fd), Events: events})
		p.polled = append(p.polled, armed)
	}
}

// Retry delays after a failed poll(2), such as EINVAL when the set
// exceeds RLIMIT_NOFILE.
const (
	minBackoff = time.Millisecond
	maxBackoff = time.Second
)

const (
	readable = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL
	writable = unix.POLLOUT | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL
)

func (p *Poller) dispatch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 1; i < len(p.pollfds); i++ {
		rev := p.pollfds[i].Revents
		if rev == 0 {
			continue
		}
		for _, s := range p.polled[i] {
			if !s.armed {
				continue
			}
			mask := int16(readable)
			if s.dir == Write {
				mask = writable
			}
			if rev&mask != 0 {
				s.armed = false
				s.signal()
			}
		}
	}
}

type subscription struct {
	p     *Poller
	fd    int
	dir   Direction
	ready chan struct{}

	// guarded by p.mu
	armed    bool
	woken    bool
	released bool
}

func (s *subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *subscription) Wait(ctx context.Context) error {
	wait, err := s.p.arm(s)
	if err != nil || !wait {
		return err
	}
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		s.p.disarm(s)
		return ctx.Err()
	case <-s.p.done:
		return ErrClosed
	}
}

func (s *subscription) Release() {
	s.p.release(s)
}
