// Package gurt implements the overlay wire protocol: plaintext upgrade
// handshake, request/response framing, and the canonical status set.
//
// Framing is HTTP/1.1-shaped (start line, CRLF header block, optional
// content-length body) but versioned independently and always carried
// inside TLS 1.3 once the handshake completes.
package gurt

// Protocol identity constants.
const (
	// Version is the protocol version literal used in start and status lines.
	Version = "GURT/1.0.0"

	// ALPN is the application protocol identifier advertised during the
	// TLS upgrade that follows the plaintext handshake.
	ALPN = "GURT/1.0"

	// DefaultPort is the well-known overlay port.
	DefaultPort = 4878
)

// Size ceilings.
const (
	// MaxMessageSize bounds a complete serialized message: start line,
	// header block, and declared body together. Reads that would push the
	// accumulated message past this ceiling fail deterministically.
	MaxMessageSize = 10 * 1024 * 1024

	// MaxHandshakeSize bounds the plaintext upgrade exchange. The
	// handshake carries no body so 8 KiB is generous.
	MaxHandshakeSize = 8 * 1024
)
