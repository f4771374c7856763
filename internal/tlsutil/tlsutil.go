// Package tlsutil builds the TLS 1.3 configurations used on both sides
// of the overlay upgrade.
package tlsutil

import (
	"crypto/tls"
	"fmt"

	"github.com/gurtlabs/gurtd/internal/gurt"
)

// ServerConfig loads the PEM certificate chain and key and returns a
// server configuration pinned to TLS 1.3 with the overlay ALPN token.
// Load failure is fatal for the process; callers exit non-zero.
func ServerConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls material: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		NextProtos:   []string{gurt.ALPN},
	}, nil
}

// ClientConfig returns the client side configuration. Overlay domains
// are signed by a network-local CA rather than the web PKI, so peer
// verification is disabled; the protocol still requires TLS 1.3 and
// rejects sessions that negotiate anything else.
func ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
		MaxVersion:         tls.VersionTLS13,
		NextProtos:         []string{gurt.ALPN},
	}
}
