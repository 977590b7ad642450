package registry

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("registry closed")

// Table is a concurrency-safe handle table.
type Table[T any] struct {
	mu      sync.RWMutex
	entries []slot[T]
	free    []Handle
	live    int
	closed  bool

	obsMu     sync.RWMutex
	observers []subscriber[T]
	nextObs   int
}

type slot[T any] struct {
	value T
	valid bool
}

type subscriber[T any] struct {
	id int
	o  Observer[T]
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{
		entries: make([]slot[T], 0, 16),
	}
}

// Add stores v and returns its handle.
func (t *Table[T]) Add(v T) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}
	var h Handle
	if n := len(t.free); n > 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[h-1] = slot[T]{value: v, valid: true}
	} else {
		t.entries = append(t.entries, slot[T]{value: v, valid: true})
		h = Handle(len(t.entries))
	}
	t.live++
	t.mu.Unlock()

	t.notify(Event[T]{Type: EventAdded, Handle: h, Value: v})
	return h, nil
}

// Get returns the value for h.
func (t *Table[T]) Get(h Handle) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.slot(h); ok {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Remove drops h and returns its value. The value is not closed.
func (t *Table[T]) Remove(h Handle) (T, bool) {
	t.mu.Lock()
	s, ok := t.slot(h)
	if !ok {
		t.mu.Unlock()
		var zero T
		return zero, false
	}
	t.entries[h-1] = slot[T]{}
	t.free = append(t.free, h)
	t.live--
	t.mu.Unlock()

	t.notify(Event[T]{Type: EventRemoved, Handle: h, Value: s.value})
	return s.value, true
}

// caller holds t.mu
func (t *Table[T]) slot(h Handle) (slot[T], bool) {
	if h == 0 || int(h) > len(t.entries) {
		return slot[T]{}, false
	}
	s := t.entries[h-1]
	return s, s.valid
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each calls fn for every live value in handle order until fn returns
// false. It iterates over a snapshot, so fn may modify the table.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	type pair struct {
		h Handle
		v T
	}
	t.mu.RLock()
	snapshot := make([]pair, 0, t.live)
	for i, s := range t.entries {
		if s.valid {
			snapshot = append(snapshot, pair{Handle(i + 1), s.value})
		}
	}
	t.mu.RUnlock()

	for _, p := range snapshot {
		if !fn(p.h, p.v) {
			return
		}
	}
}

// Subscribe registers o and returns a function that unregisters it.
func (t *Table[T]) Subscribe(o Observer[T]) (cancel func()) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextObs++
	id := t.nextObs
	t.observers = append(t.observers, subscriber[T]{id: id, o: o})
	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		for i, s := range t.observers {
			if s.id == id {
				t.observers = append(t.observers[:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

func (t *Table[T]) notify(e Event[T]) {
	t.obsMu.RLock()
	observers := make([]Observer[T], len(t.observers))
	for i, s := range t.observers {
		observers[i] = s.o
	}
	t.obsMu.RUnlock()

	for _, o := range observers {
		o.OnEvent(e)
	}
}

// Close stops accepting values, removes every remaining one and closes those
// that implement io.Closer. The joined close errors are returned.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	var errs []error
	t.Each(func(h Handle, v T) bool {
		if _, ok := t.Remove(h); !ok {
			return true
		}
		if c, ok := any(v).(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return true
	})
	return errors.Join(errs...)
}
