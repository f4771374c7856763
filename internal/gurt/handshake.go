package gurt

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// The plaintext upgrade exchange that precedes TLS. The start line is
// matched byte for byte; anything else closes the connection with no
// response written.

// HandshakeStartLine is the only accepted upgrade request line.
const HandshakeStartLine = "HANDSHAKE / " + Version

// ValidateHandshake checks an upgrade request block. Extra headers
// after the start line are permitted and ignored.
func ValidateHandshake(block []byte) error {
	text := string(block)
	line, _, ok := strings.Cut(text, crlf)
	if !ok {
		line = text
	}
	if line != HandshakeStartLine {
		return fmt.Errorf("%w: handshake line %q", ErrMalformed, line)
	}
	return nil
}

// EncodeHandshakeRequest builds the client side of the upgrade. The
// host and user-agent headers identify the caller; servers ignore them.
func EncodeHandshakeRequest(host, userAgent string) []byte {
	var b bytes.Buffer
	b.WriteString(HandshakeStartLine)
	b.WriteString(crlf)
	if host != "" {
		b.WriteString("host: ")
		b.WriteString(host)
		b.WriteString(crlf)
	}
	if userAgent != "" {
		b.WriteString("user-agent: ")
		b.WriteString(userAgent)
		b.WriteString(crlf)
	}
	b.WriteString(crlf)
	return b.Bytes()
}

// EncodeHandshakeResponse builds the fixed 101 upgrade response with
// its four required headers plus a date.
func EncodeHandshakeResponse() []byte {
	var b bytes.Buffer
	b.WriteString(Version)
	b.WriteString(" 101 SWITCHING_PROTOCOLS")
	b.WriteString(crlf)
	b.WriteString("gurt-version: 1.0.0")
	b.WriteString(crlf)
	b.WriteString("encryption: TLS/1.3")
	b.WriteString(crlf)
	b.WriteString("alpn: ")
	b.WriteString(ALPN)
	b.WriteString(crlf)
	b.WriteString("server: ")
	b.WriteString(Version)
	b.WriteString(crlf)
	b.WriteString("date: ")
	b.WriteString(httpDate(time.Now()))
	b.WriteString(crlf)
	b.WriteString(crlf)
	return b.Bytes()
}

// ValidateHandshakeResponse checks the server's upgrade reply as seen
// by a client. Any deviation in version or status is a hard failure.
func ValidateHandshakeResponse(block []byte) error {
	status, _, _, err := ParseResponseHead(block)
	if err != nil {
		return err
	}
	if status != StatusSwitchingProtocols {
		return fmt.Errorf("%w: handshake status %d", ErrMalformed, status)
	}
	return nil
}
