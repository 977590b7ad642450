package registry

// Handle is an opaque reference to a value in a Table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a lifecycle transition.
type EventType uint8

const (
	EventAdded EventType = iota
	EventRemoved
)

func (e EventType) String() string {
	switch e {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification.
type Event[T any] struct {
	Value  T
	Handle Handle
	Type   EventType
}

// Observer receives lifecycle events. It is called outside the table lock
// and may call back into the table.
type Observer[T any] interface {
	OnEvent(Event[T])
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[T any] func(Event[T])

func (f ObserverFunc[T]) OnEvent(e Event[T]) { f(e) }
