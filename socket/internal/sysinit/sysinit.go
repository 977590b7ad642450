// Package sysinit holds process-wide setup the socket core needs before it
// creates its first descriptor.
package sysinit

import (
	"os/signal"
	"sync/atomic"
	"syscall"
)

var sigpipeIgnored atomic.Bool

// IgnoreSIGPIPE sets the SIGPIPE disposition to ignore, once per process.
// Writes to a reset stream then fail with EPIPE instead of terminating.
// It reports whether this call performed the change.
func IgnoreSIGPIPE() bool {
	if !sigpipeIgnored.CompareAndSwap(false, true) {
		return false
	}
	signal.Ignore(syscall.SIGPIPE)
	return true
}

// SIGPIPEIgnored reports whether IgnoreSIGPIPE has run.
func SIGPIPEIgnored() bool {
	return sigpipeIgnored.Load()
}
