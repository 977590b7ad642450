// Package errmap maps raw OS failure codes to the socket error taxonomy.
//
// The mapping is operation-sensitive: the same errno can mean different
// things for create, connect or send. Each entry also carries the effect the
// failure has on the socket, so the retry loops in the socket package stay
// free of errno switches.
package errmap

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/corosock/errors"
)

// Effect is what a retry loop does with a syscall failure.
type Effect uint8

const (
	// Fail surfaces the error and leaves the socket usable.
	Fail Effect = iota
	// Retry reissues the syscall immediately (interrupted by a signal).
	Retry
	// Wait suspends on readiness and retries.
	Wait
	// Close surfaces the error and closes the descriptor.
	Close
	// CloseStream closes the descriptor on stream sockets only.
	CloseStream
	// Connected treats the failure as a completed connect.
	Connected
)

func (e Effect) String() string {
	switch e {
	case Fail:
		return "fail"
	case Retry:
		return "retry"
	case Wait:
		return "wait"
	case Close:
		return "close"
	case CloseStream:
		return "close-stream"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Entry is the classification of one errno for one operation.
type Entry struct {
	Kind    errors.Kind
	Message string
	Effect  Effect
}

// Human-readable descriptions recorded in a socket's last error.
const (
	msgAddressInUse      = "Address already in use"
	msgPortInUse         = "The bound address is already in use"
	msgAddressProtected  = "The address is protected"
	msgAddressNotAvail   = "The address is not available"
	msgAccess            = "Permission denied"
	msgResource          = "Out of resources"
	msgProtocol          = "Protocol type not supported"
	msgUnsupported       = "Unsupported socket operation"
	msgConnRefused       = "Connection refused"
	msgConnTimeout       = "Connection timed out"
	msgHostUnreachable   = "Host unreachable"
	msgNetUnreachable    = "Network unreachable"
	msgRemoteClosed      = "The remote host closed the connection"
	msgDatagramTooLarge  = "Datagram was too large to send"
	msgInvalidSocket     = "Invalid socket descriptor"
	msgNotSocket         = "Operation on non-socket"
	msgUnknown           = "Unknown error"
	msgInProgress        = "Operation in progress"
	msgInterrupted       = "Interrupted system call"
	msgAlreadyConnected  = "Socket is already connected"
	msgMessageOversized  = "Message too long"
	msgNotConnected      = "Socket is not connected"
	msgDestinationNeeded = "Destination address required"
)

type table struct {
	entries  map[unix.Errno]Entry
	fallback Effect
}

var (
	// EWOULDBLOCK equals EAGAIN on every supported platform.
	transient = map[unix.Errno]Entry{
		unix.EINTR:  {"", msgInterrupted, Retry},
		unix.EAGAIN: {"", msgInProgress, Wait},
	}

	tables = map[errors.Op]table{
		errors.OpCreate: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.EPROTONOSUPPORT: {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.EAFNOSUPPORT:    {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.EINVAL:          {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.ENFILE:          {errors.KindResourceExhausted, msgResource, Fail},
				unix.EMFILE:          {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOBUFS:         {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOMEM:          {errors.KindResourceExhausted, msgResource, Fail},
				unix.EACCES:          {errors.KindAccessDenied, msgAccess, Fail},
				unix.EPERM:           {errors.KindAccessDenied, msgAccess, Fail},
			},
		},
		errors.OpBind: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.EADDRINUSE:    {errors.KindAddressInUse, msgAddressInUse, Fail},
				unix.EACCES:        {errors.KindAccessDenied, msgAddressProtected, Fail},
				unix.EPERM:         {errors.KindAccessDenied, msgAddressProtected, Fail},
				unix.EINVAL:        {errors.KindUnsupportedOperation, msgUnsupported, Fail},
				unix.EADDRNOTAVAIL: {errors.KindAddressNotAvailable, msgAddressNotAvail, Fail},
				unix.EAFNOSUPPORT:  {errors.KindProtocolUnsupported, msgProtocol, Fail},
			},
		},
		errors.OpConnect: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.EINPROGRESS:   {"", msgInProgress, Wait},
				unix.EALREADY:      {"", msgInProgress, Wait},
				unix.EISCONN:       {"", msgAlreadyConnected, Connected},
				unix.ECONNREFUSED:  {errors.KindConnectionRefused, msgConnRefused, Fail},
				unix.EINVAL:        {errors.KindConnectionRefused, msgConnRefused, Fail},
				unix.ETIMEDOUT:     {errors.KindTimeout, msgConnTimeout, Fail},
				unix.EHOSTUNREACH:  {errors.KindHostUnreachable, msgHostUnreachable, Fail},
				unix.ENETUNREACH:   {errors.KindNetworkUnreachable, msgNetUnreachable, Fail},
				unix.EADDRINUSE:    {errors.KindAddressInUse, msgAddressInUse, Fail},
				unix.EADDRNOTAVAIL: {errors.KindAddressNotAvailable, msgAddressNotAvail, Fail},
				unix.EACCES:        {errors.KindAccessDenied, msgAccess, Fail},
				unix.EPERM:         {errors.KindAccessDenied, msgAccess, Fail},
				unix.EAFNOSUPPORT:  {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.EBADF:         {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.EFAULT:        {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.ENOTSOCK:      {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
			},
		},
		errors.OpListen: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.EADDRINUSE: {errors.KindAddressInUse, msgPortInUse, Fail},
				unix.EOPNOTSUPP: {errors.KindUnsupportedOperation, msgUnsupported, Fail},
				unix.EBADF:      {errors.KindUnsupportedOperation, msgInvalidSocket, Fail},
				unix.ENOTSOCK:   {errors.KindUnsupportedOperation, msgNotSocket, Fail},
			},
		},
		errors.OpAccept: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.EBADF:           {errors.KindUnsupportedOperation, msgInvalidSocket, Fail},
				unix.EOPNOTSUPP:      {errors.KindUnsupportedOperation, msgInvalidSocket, Fail},
				unix.ECONNABORTED:    {errors.KindNetwork, msgRemoteClosed, Fail},
				unix.EFAULT:          {errors.KindResourceExhausted, msgNotSocket, Fail},
				unix.ENOTSOCK:        {errors.KindResourceExhausted, msgNotSocket, Fail},
				unix.EPROTONOSUPPORT: {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.EPROTO:          {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.EAFNOSUPPORT:    {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.EINVAL:          {errors.KindProtocolUnsupported, msgProtocol, Fail},
				unix.ENFILE:          {errors.KindResourceExhausted, msgResource, Fail},
				unix.EMFILE:          {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOBUFS:         {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOMEM:          {errors.KindResourceExhausted, msgResource, Fail},
				unix.EACCES:          {errors.KindAccessDenied, msgAccess, Fail},
				unix.EPERM:           {errors.KindAccessDenied, msgAccess, Fail},
			},
		},
		errors.OpRecv: {
			fallback: Close,
			entries: map[unix.Errno]Entry{
				unix.ECONNRESET:   {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ESHUTDOWN:    {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ECONNREFUSED: {errors.KindConnectionRefused, msgConnRefused, Fail},
				unix.ENOMEM:       {errors.KindResourceExhausted, msgResource, Fail},
				unix.EBADF:        {errors.KindNetwork, msgInvalidSocket, Close},
				unix.EINVAL:       {errors.KindNetwork, msgInvalidSocket, Close},
				unix.EIO:          {errors.KindNetwork, msgInvalidSocket, Close},
				unix.ENOTCONN:     {errors.KindNetwork, msgNotConnected, Close},
			},
		},
		errors.OpRecvFrom: {
			fallback: Close,
			entries: map[unix.Errno]Entry{
				unix.ECONNRESET:   {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ECONNREFUSED: {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ENOTCONN:     {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ESHUTDOWN:    {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ENOMEM:       {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOTSOCK:     {errors.KindNetwork, msgInvalidSocket, Close},
				unix.EBADF:        {errors.KindNetwork, msgInvalidSocket, Close},
				unix.EINVAL:       {errors.KindNetwork, msgInvalidSocket, Close},
				unix.EIO:          {errors.KindNetwork, msgInvalidSocket, Close},
				unix.EFAULT:       {errors.KindNetwork, msgInvalidSocket, Close},
			},
		},
		errors.OpSend: {
			fallback: Close,
			entries: map[unix.Errno]Entry{
				unix.EACCES:       {errors.KindAccessDenied, msgAccess, Close},
				unix.EPERM:        {errors.KindAccessDenied, msgAccess, Close},
				unix.EBADF:        {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.EFAULT:       {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.EINVAL:       {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.ENOTCONN:     {errors.KindUnsupportedOperation, msgNotConnected, Close},
				unix.ENOTSOCK:     {errors.KindUnsupportedOperation, msgNotSocket, Close},
				unix.EMSGSIZE:     {errors.KindDatagramTooLarge, msgDatagramTooLarge, Fail},
				unix.ENOBUFS:      {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOMEM:       {errors.KindResourceExhausted, msgResource, Fail},
				unix.EPIPE:        {errors.KindRemoteClosed, msgRemoteClosed, Close},
				unix.ECONNRESET:   {errors.KindRemoteClosed, msgRemoteClosed, Close},
				unix.ECONNREFUSED: {errors.KindConnectionRefused, msgConnRefused, Fail},
			},
		},
		errors.OpSendTo: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.EACCES:       {errors.KindAccessDenied, msgAccess, Fail},
				unix.EPERM:        {errors.KindAccessDenied, msgAccess, Fail},
				unix.EMSGSIZE:     {errors.KindDatagramTooLarge, msgMessageOversized, Fail},
				unix.ECONNRESET:   {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.ENOTSOCK:     {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.EPIPE:        {errors.KindRemoteClosed, msgRemoteClosed, CloseStream},
				unix.EDESTADDRREQ: {errors.KindUnsupportedOperation, msgDestinationNeeded, Fail},
				unix.EISCONN:      {errors.KindUnsupportedOperation, msgAlreadyConnected, Fail},
				unix.ENOTCONN:     {errors.KindUnsupportedOperation, msgNotConnected, Fail},
				unix.ENOBUFS:      {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOMEM:       {errors.KindResourceExhausted, msgResource, Fail},
				unix.EHOSTUNREACH: {errors.KindHostUnreachable, msgHostUnreachable, Fail},
				unix.ENETUNREACH:  {errors.KindNetworkUnreachable, msgNetUnreachable, Fail},
				unix.ECONNREFUSED: {errors.KindConnectionRefused, msgConnRefused, Fail},
				unix.EFAULT:       {errors.KindNetwork, msgInvalidSocket, Fail},
				unix.EINVAL:       {errors.KindNetwork, msgInvalidSocket, Fail},
			},
		},
		errors.OpOption: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.ENOPROTOOPT: {errors.KindUnsupportedOperation, msgUnsupported, Fail},
				unix.EINVAL:      {errors.KindUnsupportedOperation, msgUnsupported, Fail},
				unix.EACCES:      {errors.KindAccessDenied, msgAccess, Fail},
				unix.EPERM:       {errors.KindAccessDenied, msgAccess, Fail},
				unix.ENOBUFS:     {errors.KindResourceExhausted, msgResource, Fail},
				unix.ENOMEM:      {errors.KindResourceExhausted, msgResource, Fail},
				unix.EBADF:       {errors.KindUnsupportedOperation, msgInvalidSocket, Fail},
				unix.ENOTSOCK:    {errors.KindUnsupportedOperation, msgNotSocket, Fail},
			},
		},
		errors.OpShutdown: {
			fallback: Fail,
			entries: map[unix.Errno]Entry{
				unix.ENOTCONN: {errors.KindInvalidState, msgNotConnected, Fail},
				unix.EINVAL:   {errors.KindInvalidArgument, msgUnsupported, Fail},
				unix.EBADF:    {errors.KindUnsupportedOperation, msgInvalidSocket, Close},
				unix.ENOTSOCK: {errors.KindUnsupportedOperation, msgNotSocket, Close},
			},
		},
	}
)

// Lookup classifies errno for op. It is total: codes not recognized for op
// map to KindUnknown with the operation's fallback effect.
func Lookup(op errors.Op, errno unix.Errno) Entry {
	if e, ok := transient[errno]; ok {
		return e
	}
	t, ok := tables[op]
	if !ok {
		return Entry{Kind: errors.KindUnknown, Message: msgUnknown, Effect: Fail}
	}
	if e, ok := t.entries[errno]; ok {
		return e
	}
	return Entry{Kind: errors.KindUnknown, Message: msgUnknown, Effect: t.fallback}
}

// Kind returns only the semantic kind of errno for op.
// Transient codes have no kind and return "".
func Kind(op errors.Op, errno unix.Errno) errors.Kind {
	return Lookup(op, errno).Kind
}

// Build returns the structured error recorded for a classified failure.
func (e Entry) Build(op errors.Op, errno unix.Errno, addr string) *errors.Error {
	return &errors.Error{
		Cause:   errno,
		Op:      op,
		Kind:    e.Kind,
		Address: addr,
		Detail:  e.Message,
	}
}
