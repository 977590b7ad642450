// Package errors provides structured error types for corosock sockets.
//
// Errors are categorized by Op (the socket operation that failed) and Kind
// (the stable semantic category). The Error type carries the endpoint the
// operation targeted, a human-readable detail, and the underlying cause,
// usually a unix.Errno or a context error.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.OpConnect, errors.KindConnectionRefused).
//		Address("127.0.0.1:9").
//		Detail("connection refused").
//		Cause(unix.ECONNREFUSED).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidState(errors.OpAccept, "unconnected")
//	err := errors.Closed(errors.OpRecv)
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching against a target with an empty Op compares only the Kind:
//
//	if errors.Is(err, &errors.Error{Kind: errors.KindAddressInUse}) { ... }
package errors
