package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Op:      OpConnect,
				Kind:    KindConnectionRefused,
				Address: "127.0.0.1:1",
				Detail:  "connection refused",
			},
			contains: []string{"[connect]", "connection_refused", "127.0.0.1:1", "connection refused"},
		},
		{
			name: "minimal error",
			err: &Error{
				Op:   OpRecv,
				Kind: KindRemoteClosed,
			},
			contains: []string{"[recv]", "remote_closed"},
		},
		{
			name: "error with cause",
			err: &Error{
				Op:     OpSend,
				Kind:   KindResourceExhausted,
				Detail: "out of buffers",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[send]", "resource_exhausted", "out of buffers", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Op:    OpBind,
		Kind:  KindAddressInUse,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Op:     OpBind,
		Kind:   KindAddressInUse,
		Detail: "port taken",
	}

	if !err.Is(&Error{Op: OpBind, Kind: KindAddressInUse}) {
		t.Error("Is should match same op and kind")
	}
	if err.Is(&Error{Op: OpListen, Kind: KindAddressInUse}) {
		t.Error("Is should not match different op")
	}
	if err.Is(&Error{Op: OpBind, Kind: KindAccessDenied}) {
		t.Error("Is should not match different kind")
	}
	if !err.Is(&Error{Kind: KindAddressInUse}) {
		t.Error("empty op should match any op")
	}

	wrapped := fmt.Errorf("serve: %w", err)
	if !errors.Is(wrapped, &Error{Kind: KindAddressInUse}) {
		t.Error("errors.Is should match through wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(OpConnect, KindTimeout).
		Address("[::1]:80").
		Cause(cause).
		Detail("gave up after %d attempts", 3).
		Build()

	if err.Op != OpConnect {
		t.Errorf("Op = %v, want %v", err.Op, OpConnect)
	}
	if err.Kind != KindTimeout {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTimeout)
	}
	if err.Address != "[::1]:80" {
		t.Errorf("Address = %v, want [::1]:80", err.Address)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "gave up after 3 attempts" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestKindOf(t *testing.T) {
	if k := KindOf(nil); k != "" {
		t.Errorf("KindOf(nil) = %q, want empty", k)
	}
	if k := KindOf(errors.New("plain")); k != KindUnknown {
		t.Errorf("KindOf(plain) = %q, want %q", k, KindUnknown)
	}
	err := fmt.Errorf("outer: %w", Closed(OpRecv))
	if k := KindOf(err); k != KindClosed {
		t.Errorf("KindOf(wrapped) = %q, want %q", k, KindClosed)
	}
}

func TestTemporary(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindDatagramTooLarge, true},
		{KindResourceExhausted, true},
		{KindCanceled, true},
		{KindRemoteClosed, false},
		{KindAccessDenied, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := &Error{Op: OpSend, Kind: tt.kind}
			if got := e.Temporary(); got != tt.want {
				t.Errorf("Temporary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidState", func(t *testing.T) {
		err := InvalidState(OpAccept, "connected")
		if err.Kind != KindInvalidState {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidState)
		}
		if !strings.Contains(err.Detail, "connected") {
			t.Errorf("Detail = %v, should name the state", err.Detail)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		err := Closed(OpSend)
		if err.Kind != KindClosed || err.Op != OpSend {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		err := Unsupported(OpOption, "max streams")
		if err.Kind != KindUnsupportedOperation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUnsupportedOperation)
		}
	})

	t.Run("InvalidArgument", func(t *testing.T) {
		err := InvalidArgument(OpListen, "negative backlog")
		if err.Kind != KindInvalidArgument {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidArgument)
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(OpCreate, KindUnknown, cause, "socket")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause")
		}
	})
}
