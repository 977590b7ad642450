// Package socket implements a non-blocking TCP/UDP socket driven by an
// explicit connection state machine.
//
// Every operation that would block on the OS instead suspends the calling
// goroutine on a reactor subscription and retries the syscall when the
// descriptor becomes ready. Transient conditions (would-block, EINTR,
// connect in progress) never reach the caller. Recoverable failures leave the
// socket usable. Fatal failures close the descriptor, so later calls fail fast
// with a closed error.
//
// State machine:
//
//	Unconnected --Bind--> Bound
//	Unconnected|Bound|Connecting --Connect--> Connecting --> Connected
//	Connecting --hard failure--> Unconnected
//	Unconnected|Bound --Listen--> Listening
//	any --Close--> Unconnected (descriptor released)
//
// Close may be called from any goroutine. It wakes every goroutine suspended
// on the descriptor; their loops observe the closed descriptor and return
// whatever they transferred so far.
//
// At most one goroutine may run an operation per direction at a time. A
// concurrent Recv and Send on one connected socket is fine, two concurrent
// Recv calls are not.
package socket
