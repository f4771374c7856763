// Package transport implements the overlay client: resolve, connect,
// upgrade, TLS, one request/response exchange. Retries with fixed
// backoff wrap the whole sequence; malformed framing is never retried.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/tlsutil"
)

// Resolver answers overlay name lookups. The resolver package provides
// the real implementation; a nil Resolver falls straight through to OS
// name resolution.
type Resolver interface {
	Resolve(ctx context.Context, name string) (netip.Addr, error)
}

// DialFunc opens the raw TCP connection. Tests swap this for an
// in-memory pipe.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

const (
	defaultAttempts = 3
	defaultBackoff  = 250 * time.Millisecond
)

// Client performs overlay fetches. The zero value is not usable; use
// New.
type Client struct {
	logger    *slog.Logger
	resolver  Resolver
	timeouts  Timeouts
	userAgent string

	attempts int
	backoff  time.Duration

	dial DialFunc
}

// Options configures a Client. Zero fields take defaults.
type Options struct {
	Logger    *slog.Logger
	Resolver  Resolver
	Timeouts  Timeouts
	UserAgent string
	Attempts  int
	Backoff   time.Duration
	Dial      DialFunc
}

// New builds a client, clamping the timeouts into their envelopes.
func New(opts Options) *Client {
	c := &Client{
		logger:    opts.Logger,
		resolver:  opts.Resolver,
		timeouts:  opts.Timeouts.Clamped(),
		userAgent: opts.UserAgent,
		attempts:  opts.Attempts,
		backoff:   opts.Backoff,
		dial:      opts.Dial,
	}
	if c.userAgent == "" {
		c.userAgent = "gurtd/0.1"
	}
	if c.attempts <= 0 {
		c.attempts = defaultAttempts
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.dial == nil {
		c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	return c
}

// Timeouts returns the clamped per-stage deadlines in effect.
func (c *Client) Timeouts() Timeouts {
	return c.timeouts
}

// Fetch performs a GET for the given gurt:// URL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*gurt.Response, error) {
	return c.Do(ctx, "GET", rawURL, nil, nil)
}

// Do performs one overlay exchange with retries. Connection, timeout,
// and I/O failures back off and retry; invalid messages fail fast.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers gurt.Headers, body []byte) (*gurt.Response, error) {
	target, err := parseURL(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindInvalidMessage, Op: "parse_url", Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.doOnce(ctx, method, target, headers, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		te, ok := err.(*Error)
		if ok && !te.Retryable() {
			return nil, err
		}
		if attempt == c.attempts {
			break
		}
		if c.logger != nil {
			c.logger.Debug("fetch retry",
				"url", rawURL, "attempt", attempt, "err", err)
		}
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return nil, &Error{Kind: KindTimeout, Op: "backoff", Err: ctx.Err()}
		}
	}
	return nil, lastErr
}

// target is a parsed gurt:// URL.
type target struct {
	host string
	port int
	path string // request path with query preserved
}

func parseURL(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, err
	}
	if u.Scheme != "gurt" || u.Hostname() == "" {
		return target{}, fmt.Errorf("not an overlay url: %q", raw)
	}
	t := target{host: u.Hostname(), port: gurt.DefaultPort, path: u.RequestURI()}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return target{}, fmt.Errorf("bad port in %q", raw)
		}
		t.port = n
	}
	if t.path == "" {
		t.path = "/"
	}
	return t, nil
}

// hostHeader renders the host header value; the port is included only
// when it differs from the well-known one.
func (t target) hostHeader() string {
	if t.port != gurt.DefaultPort {
		return net.JoinHostPort(t.host, strconv.Itoa(t.port))
	}
	return t.host
}

func (c *Client) doOnce(ctx context.Context, method string, t target, headers gurt.Headers, body []byte) (*gurt.Response, error) {
	overall := time.Now().Add(c.timeouts.Fetch)
	ctx, cancel := context.WithDeadline(ctx, overall)
	defer cancel()

	addr, err := c.pickAddress(ctx, t.host)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: "resolve", Err: err}
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, c.timeouts.Connect)
	conn, err := c.dial(dialCtx, net.JoinHostPort(addr.String(), strconv.Itoa(t.port)))
	dialCancel()
	if err != nil {
		return nil, &Error{Kind: KindConnection, Op: "connect", Err: err}
	}
	defer conn.Close()

	tlsConn, err := c.upgrade(ctx, conn, t, overall)
	if err != nil {
		return nil, err
	}

	_ = tlsConn.SetDeadline(overall)
	req := c.buildRequest(method, t, headers, body)
	if _, err := tlsConn.Write(req.Encode()); err != nil {
		return nil, classify("write_request", err)
	}

	return c.readResponse(tlsConn, overall)
}

// pickAddress applies the precedence rule: literal IP in the URL host,
// then the resolver, then OS name resolution. localhost always goes
// through the OS path.
func (c *Client) pickAddress(ctx context.Context, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}
	if c.resolver != nil && host != "localhost" {
		if addr, err := c.resolver.Resolve(ctx, host); err == nil {
			return addr, nil
		}
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("lookup %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("lookup %s: no addresses", host)
	}
	return addrs[0], nil
}

// upgrade runs the plaintext handshake and wraps the connection in
// TLS, enforcing 1.3 on the negotiated session.
func (c *Client) upgrade(ctx context.Context, conn net.Conn, t target, overall time.Time) (*tls.Conn, error) {
	deadline := time.Now().Add(c.timeouts.Handshake)
	if deadline.After(overall) {
		deadline = overall
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(gurt.EncodeHandshakeRequest(t.hostHeader(), c.userAgent)); err != nil {
		return nil, classify("write_handshake", err)
	}
	block, _, err := gurt.ReadBlock(conn, gurt.MaxHandshakeSize)
	if err != nil {
		return nil, classify("read_handshake", err)
	}
	if err := gurt.ValidateHandshakeResponse(block); err != nil {
		return nil, &Error{Kind: KindInvalidMessage, Op: "handshake", Err: err}
	}

	tlsConn := tls.Client(conn, tlsutil.ClientConfig(t.host))
	_ = tlsConn.SetDeadline(deadline)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, classify("tls_handshake", err)
	}
	if tlsConn.ConnectionState().Version != tls.VersionTLS13 {
		return nil, &Error{Kind: KindInvalidMessage, Op: "tls_version",
			Err: fmt.Errorf("negotiated %#x, need TLS 1.3", tlsConn.ConnectionState().Version)}
	}
	return tlsConn, nil
}

func (c *Client) buildRequest(method string, t target, extra gurt.Headers, body []byte) *gurt.Request {
	req := &gurt.Request{Method: method, Path: t.path, Body: body}
	req.Headers.Add("host", t.hostHeader())
	req.Headers.Add("user-agent", c.userAgent)
	req.Headers.Add("accept", "text/html, */*")
	req.Headers.Add("connection", "close")
	for _, h := range extra {
		req.Headers.Add(h.Name, h.Value)
	}
	return req
}

// readResponse parses the status block then the body, either by
// declared content-length or by reading until the peer goes idle.
func (c *Client) readResponse(conn net.Conn, overall time.Time) (*gurt.Response, error) {
	_ = conn.SetDeadline(overall)
	block, rest, err := gurt.ReadBlock(conn, gurt.MaxMessageSize)
	if err != nil {
		return nil, classify("read_response", err)
	}
	status, _, headers, err := gurt.ParseResponseHead(block)
	if err != nil {
		return nil, &Error{Kind: KindInvalidMessage, Op: "parse_response", Err: err}
	}

	n, err := gurt.ContentLength(headers, len(block))
	if err != nil {
		// Ceiling and parse failures both surface as I/O on the client.
		return nil, &Error{Kind: KindIO, Op: "content_length", Err: err}
	}

	var body []byte
	if headers.Has("content-length") {
		body, err = c.readExact(conn, rest, n)
	} else {
		body, err = c.readUntilIdle(conn, rest, len(block), overall)
	}
	if err != nil {
		return nil, err
	}
	return &gurt.Response{Status: status, Headers: headers, Body: body}, nil
}

func (c *Client) readExact(conn net.Conn, rest []byte, n int) ([]byte, error) {
	if len(rest) >= n {
		return rest[:n], nil
	}
	body := make([]byte, n)
	copy(body, rest)
	if _, err := io.ReadFull(conn, body[len(rest):]); err != nil {
		return nil, classify("read_body", err)
	}
	return body, nil
}

// readUntilIdle accumulates body bytes until EOF or a read gap longer
// than the idle deadline, still subject to the message ceiling.
func (c *Client) readUntilIdle(conn net.Conn, rest []byte, headSize int, overall time.Time) ([]byte, error) {
	body := append([]byte(nil), rest...)
	buf := make([]byte, 4096)
	for {
		deadline := time.Now().Add(c.timeouts.IdleRead)
		if deadline.After(overall) {
			deadline = overall
		}
		_ = conn.SetReadDeadline(deadline)
		n, err := conn.Read(buf)
		if n > 0 {
			if headSize+len(body)+n > gurt.MaxMessageSize {
				return nil, &Error{Kind: KindIO, Op: "read_body", Err: gurt.ErrTooLarge}
			}
			body = append(body, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return body, nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// Idle gap: peer is done talking.
				return body, nil
			}
			return nil, classify("read_body", err)
		}
	}
}

// URLHost extracts the host (no port) from an overlay URL, used by the
// scheduler to key its per-host state.
func URLHost(rawURL string) string {
	t, err := parseURL(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(t.host)
}
