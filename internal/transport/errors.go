package transport

import (
	"errors"
	"fmt"
	"net"

	"github.com/gurtlabs/gurtd/internal/gurt"
)

// Kind classifies a transport failure. Retry policy is decided here at
// the type level: protocol-validity failures are never retried, while
// connection, timeout, and plain I/O failures are.
type Kind int

const (
	// KindInvalidMessage marks malformed framing, a bad handshake reply,
	// or a TLS session that negotiated the wrong version.
	KindInvalidMessage Kind = iota
	// KindConnection marks dial failures.
	KindConnection
	// KindTimeout marks any deadline expiry.
	KindTimeout
	// KindIO marks read/write failures, including ceiling violations on
	// the client path.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidMessage:
		return "invalid_message"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// Error is a transport failure with its classification and the fetch
// stage it occurred in.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may be retried. Malformed
// messages never are; retrying one would just replay the same bytes.
func (e *Error) Retryable() bool {
	return e.Kind != KindInvalidMessage
}

// classify wraps err with a kind inferred from its type: framing errors
// are invalid messages, expired deadlines are timeouts, everything else
// is plain I/O. Dial failures are classified at the call site.
func classify(op string, err error) *Error {
	var ne net.Error
	switch {
	case errors.Is(err, gurt.ErrMalformed):
		return &Error{Kind: KindInvalidMessage, Op: op, Err: err}
	case errors.As(err, &ne) && ne.Timeout():
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	default:
		return &Error{Kind: KindIO, Op: op, Err: err}
	}
}
