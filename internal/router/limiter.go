package router

import (
	"sync"
	"time"
)

// rateLimiter enforces a per-address sliding window. Each address
// keeps a deque of recent request times; a request is admitted when
// fewer than limit remain inside the window after pruning.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	history map[string][]time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		history: map[string][]time.Time{},
	}
}

// Allow records and admits the request unless the address already
// used its budget inside the window.
func (l *rateLimiter) Allow(addr string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.history[addr]
	keep := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	if len(keep) >= l.limit {
		l.history[addr] = keep
		return false
	}
	l.history[addr] = append(keep, now)
	return true
}

// submittedSet remembers which domains were accepted this process
// lifetime; the submission page shows the count.
type submittedSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func newSubmittedSet() *submittedSet {
	return &submittedSet{names: map[string]struct{}{}}
}

func (s *submittedSet) Add(name string) {
	s.mu.Lock()
	s.names[name] = struct{}{}
	s.mu.Unlock()
}

func (s *submittedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}
