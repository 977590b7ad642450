package socket

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/wippyai/corosock/errors"
)

var errRemoteClosed = &errors.Error{Kind: errors.KindRemoteClosed}

// Stream adapts a connected stream socket to io.ReadWriteCloser. Every call
// runs under the context given to NewStream.
type Stream struct {
	sock *Socket
	ctx  context.Context
}

var _ io.ReadWriteCloser = (*Stream)(nil)

// NewStream wraps s. The stream owns s: closing one closes the other.
func NewStream(ctx context.Context, s *Socket) *Stream {
	return &Stream{sock: s, ctx: ctx}
}

// Socket returns the wrapped socket.
func (st *Stream) Socket() *Socket {
	return st.sock
}

// Read returns io.EOF once the peer has closed the connection.
func (st *Stream) Read(p []byte) (int, error) {
	n, err := st.sock.Recv(st.ctx, p, false)
	if err != nil && stderrors.Is(err, errRemoteClosed) {
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	return n, err
}

// Write sends all of p or fails.
func (st *Stream) Write(p []byte) (int, error) {
	return st.sock.Send(st.ctx, p, true)
}

// CloseWrite half-closes the connection; the peer reads EOF.
func (st *Stream) CloseWrite() error {
	return st.sock.Shutdown(ShutdownWrite)
}

func (st *Stream) Close() error {
	return st.sock.Close()
}
