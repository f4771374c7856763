package transport

import (
	"time"

	"github.com/gurtlabs/gurtd/internal/helpers"
)

// Timeouts are the per-stage deadlines of one fetch. Values outside the
// documented envelopes are clamped rather than rejected so a bad
// environment variable degrades instead of breaking the crawl.
type Timeouts struct {
	Connect   time.Duration // TCP connect
	Handshake time.Duration // plaintext upgrade and TLS handshake, each
	Fetch     time.Duration // whole exchange, outermost bound
	IdleRead  time.Duration // per-read gap when no content-length is declared
}

// DefaultTimeouts returns the stock deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:   10 * time.Second,
		Handshake: 5 * time.Second,
		Fetch:     30 * time.Second,
		IdleRead:  500 * time.Millisecond,
	}
}

// Clamped returns a copy with every stage forced into its envelope.
// Zero values fall back to the defaults first.
func (t Timeouts) Clamped() Timeouts {
	def := DefaultTimeouts()
	if t.Connect == 0 {
		t.Connect = def.Connect
	}
	if t.Handshake == 0 {
		t.Handshake = def.Handshake
	}
	if t.Fetch == 0 {
		t.Fetch = def.Fetch
	}
	if t.IdleRead == 0 {
		t.IdleRead = def.IdleRead
	}
	t.Connect = helpers.ClampDuration(t.Connect, 500*time.Millisecond, 60*time.Second)
	t.Handshake = helpers.ClampDuration(t.Handshake, 200*time.Millisecond, 30*time.Second)
	t.Fetch = helpers.ClampDuration(t.Fetch, time.Second, 120*time.Second)
	t.IdleRead = helpers.ClampDuration(t.IdleRead, 100*time.Millisecond, 5*time.Second)
	return t
}
