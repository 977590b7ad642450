// Package registry keeps a handle table of live values, typically sockets,
// with lifecycle observers.
//
// Handles are small integers that are reused after removal. Handle 0 is
// never issued. Closing the table closes every remaining value that
// implements io.Closer, which is how a server tears down all of its
// connections at once.
//
// Basic usage:
//
//	conns := registry.New[*socket.Socket]()
//	h, err := conns.Add(sock)
//	...
//	conns.Remove(h)
//	...
//	conns.Close() // closes whatever is still registered
package registry
