package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Op identifies the socket operation that produced the error
type Op string

const (
	OpCreate   Op = "create"
	OpBind     Op = "bind"
	OpConnect  Op = "connect"
	OpListen   Op = "listen"
	OpAccept   Op = "accept"
	OpSend     Op = "send"
	OpRecv     Op = "recv"
	OpSendTo   Op = "sendto"
	OpRecvFrom Op = "recvfrom"
	OpOption   Op = "option"
	OpShutdown Op = "shutdown"
	OpClose    Op = "close"
	OpFetch    Op = "fetch" // endpoint metadata refresh
)

// Kind categorizes the error
type Kind string

const (
	KindAddressInUse         Kind = "address_in_use"
	KindAccessDenied         Kind = "access_denied"
	KindResourceExhausted    Kind = "resource_exhausted"
	KindUnsupportedOperation Kind = "unsupported_operation"
	KindProtocolUnsupported  Kind = "protocol_unsupported"
	KindAddressNotAvailable  Kind = "address_not_available"
	KindConnectionRefused    Kind = "connection_refused"
	KindTimeout              Kind = "timeout"
	KindHostUnreachable      Kind = "host_unreachable"
	KindNetworkUnreachable   Kind = "network_unreachable"
	KindRemoteClosed         Kind = "remote_closed"
	KindDatagramTooLarge     Kind = "datagram_too_large"
	KindNetwork              Kind = "network"
	KindInvalidState         Kind = "invalid_state"
	KindInvalidArgument      Kind = "invalid_argument"
	KindClosed               Kind = "closed"
	KindCanceled             Kind = "canceled"
	KindUnknown              Kind = "unknown"
)

// Error is the structured error type returned by every socket operation
type Error struct {
	Cause   error
	Op      Op
	Kind    Kind
	Address string
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Op))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Address != "" {
		b.WriteString(" ")
		b.WriteString(e.Address)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Op matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return e.Kind == t.Kind
}

// Temporary reports whether the socket that produced the error stays usable.
func (e *Error) Temporary() bool {
	switch e.Kind {
	case KindDatagramTooLarge, KindResourceExhausted, KindCanceled, KindTimeout:
		return true
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain,
// or KindUnknown when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(op Op, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Op:   op,
			Kind: kind,
		},
	}
}

// Address sets the endpoint the operation targeted
func (b *Builder) Address(addr string) *Builder {
	b.err.Address = addr
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidState creates an error for an operation attempted in the wrong state
func InvalidState(op Op, state string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("operation not permitted in state %s", state),
	}
}

// Closed creates an error for an operation on a closed descriptor
func Closed(op Op) *Error {
	return &Error{
		Op:     op,
		Kind:   KindClosed,
		Detail: "socket is closed",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(op Op, what string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindUnsupportedOperation,
		Detail: what,
	}
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(op Op, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindInvalidArgument,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(op Op, kind Kind, cause error, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
