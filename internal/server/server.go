// Package server accepts overlay connections, performs the plaintext
// handshake and TLS upgrade, frames exactly one exchange, and hands
// the parsed request to the router.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gurtlabs/gurtd/internal/gurt"
)

const (
	handshakeTimeout = 5 * time.Second
	requestTimeout   = 30 * time.Second
	maxConnsPerIP    = 10
	stopGraceDefault = 5 * time.Second
)

// Handler processes one parsed request into a response.
type Handler interface {
	Handle(ctx context.Context, req *gurt.Request, peerAddr string) *gurt.Response
}

// Server is the overlay listener.
//
// Goroutine lifecycle: Run spawns one accept goroutine per CPU core on
// SO_REUSEPORT listeners bound to the same address, plus one goroutine
// per accepted connection. Every connection serves exactly one
// exchange; there is no keep-alive. All goroutines exit when the
// context is cancelled and the listeners close.
type Server struct {
	Logger  *slog.Logger
	Handler Handler
	TLS     *tls.Config

	listeners []net.Listener

	wg sync.WaitGroup

	mu        sync.Mutex
	connPerIP map[string]int
}

// Start opens the listeners and begins accepting. It returns
// immediately; use Run to block until the context ends.
func (s *Server) Start(ctx context.Context, addr string) error {
	socketCount := runtime.NumCPU()
	s.listeners = make([]net.Listener, 0, socketCount)

	s.mu.Lock()
	if s.connPerIP == nil {
		s.connPerIP = map[string]int{}
	}
	s.mu.Unlock()

	for i := 0; i < socketCount; i++ {
		ln, err := listenReusePort(ctx, addr)
		if err != nil {
			for _, l := range s.listeners {
				_ = l.Close()
			}
			return err
		}
		s.listeners = append(s.listeners, ln)

		// With :0 the first listener picks the port; the rest must
		// share it for SO_REUSEPORT to mean anything.
		addr = ln.Addr().String()

		listener := ln
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.acceptLoop(ctx, listener)
		}()
	}

	if s.Logger != nil {
		s.Logger.Info("overlay server listening", "addr", addr, "listeners", socketCount)
	}
	return nil
}

// Run starts the listeners and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.Start(ctx, addr); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(stopGraceDefault)
}

// Addr reports the bound address of the first listener. Only valid
// after Start has returned.
func (s *Server) Addr() string {
	if len(s.listeners) == 0 {
		return ""
	}
	return s.listeners[0].Addr().String()
}

// acceptLoop accepts connections on one listener until it closes.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}

		remoteIP := remoteIPString(c.RemoteAddr())
		if !s.tryAcquireConn(remoteIP) {
			if s.Logger != nil {
				s.Logger.Warn("connection limit exceeded", "ip", remoteIP)
			}
			_ = c.Close()
			continue
		}

		conn := c
		ip := remoteIP
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn, ip)
		}()
	}
}

// handleConnection runs the full lifecycle of one exchange: plaintext
// handshake, TLS upgrade, request framing, dispatch, response write.
// Invalid handshakes and TLS failures close the socket without a
// response; framing failures answer with an error frame first.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn, ip string) {
	defer s.releaseConn(ip)
	defer conn.Close()

	peer := conn.RemoteAddr().String()

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	block, _, err := gurt.ReadBlock(conn, gurt.MaxHandshakeSize)
	if err != nil {
		return
	}
	if err := gurt.ValidateHandshake(block); err != nil {
		if s.Logger != nil {
			s.Logger.Debug("invalid handshake", "peer", peer, "err", err)
		}
		return
	}
	if _, err := conn.Write(gurt.EncodeHandshakeResponse()); err != nil {
		return
	}

	tlsConn := tls.Server(conn, s.TLS)
	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	err = tlsConn.HandshakeContext(hsCtx)
	cancel()
	if err != nil {
		if s.Logger != nil {
			s.Logger.Debug("tls handshake failed", "peer", peer, "err", err)
		}
		return
	}
	if tlsConn.ConnectionState().Version != tls.VersionTLS13 {
		return
	}

	_ = conn.SetDeadline(time.Now().Add(requestTimeout))
	req, err := gurt.ReadRequest(tlsConn)
	if err != nil {
		s.writeErrorFrame(tlsConn, err)
		return
	}

	resp := s.Handler.Handle(ctx, req, peer)
	if resp == nil {
		resp = &gurt.Response{Status: gurt.StatusInternalError}
	}
	if _, err := tlsConn.Write(encodeForWire(resp)); err != nil && s.Logger != nil {
		s.Logger.Debug("response write failed", "peer", peer, "err", err)
	}
}

// encodeForWire serializes resp, substituting an internal error frame
// when the handler produced a response over the message ceiling. The
// peer never sees a frame it would have to reject.
func encodeForWire(resp *gurt.Response) []byte {
	payload := resp.Encode()
	if len(payload) <= gurt.MaxMessageSize {
		return payload
	}
	over := &gurt.Response{
		Status: gurt.StatusInternalError,
		Body:   []byte(`{"error":"` + gurt.StatusInternalError.Reason() + `"}`),
	}
	return over.Encode()
}

// writeErrorFrame maps a framing failure to 413 or 400 and writes the
// frame best-effort; the connection closes either way.
func (s *Server) writeErrorFrame(conn net.Conn, err error) {
	status := gurt.StatusBadRequest
	if errors.Is(err, gurt.ErrTooLarge) {
		status = gurt.StatusTooLarge
	}
	resp := &gurt.Response{
		Status: status,
		Body:   []byte(`{"error":"` + status.Reason() + `"}`),
	}
	_, _ = conn.Write(resp.Encode())
}

// Stop closes the listeners and waits for in-flight connections.
func (s *Server) Stop(timeout time.Duration) error {
	for _, ln := range s.listeners {
		_ = ln.Close()
	}

	if timeout <= 0 {
		s.wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("server: timeout waiting for connections")
	}
}

// listenReusePort opens a TCP listener with SO_REUSEPORT so multiple
// listeners can share the address and the kernel spreads accepts.
func listenReusePort(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}

func remoteIPString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err == nil {
		return host
	}
	return addr.String()
}

func (s *Server) tryAcquireConn(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.connPerIP[ip]
	if cur >= maxConnsPerIP {
		return false
	}
	s.connPerIP[ip] = cur + 1
	return true
}

func (s *Server) releaseConn(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.connPerIP[ip]
	if cur <= 1 {
		delete(s.connPerIP, ip)
		return
	}
	s.connPerIP[ip] = cur - 1
}
