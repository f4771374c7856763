// Package crawler holds the polite fetch machinery: concurrency
// permits with per-host politeness, robots directives, sitemap
// extraction, and the bounded render pipeline.
package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// hostState is the lazily created per-host scheduling state.
type hostState struct {
	sem *semaphore.Weighted

	// gate serializes politeness waits; it covers only the timestamp
	// bookkeeping and the sleep, never the fetch itself.
	gate sync.Mutex
	last time.Time
}

// Scheduler gates fetches with a global permit pool and one lazily
// created pool per host. A fetch holds one permit from each, acquired
// global first, for its full duration.
type Scheduler struct {
	global  *semaphore.Weighted
	perHost int64

	mu    sync.Mutex
	hosts map[string]*hostState
}

// NewScheduler builds a scheduler with the given pool sizes; both are
// forced to at least 1.
func NewScheduler(global, perHost int) *Scheduler {
	if global <= 0 {
		global = 1
	}
	if perHost <= 0 {
		perHost = 1
	}
	return &Scheduler{
		global:  semaphore.NewWeighted(int64(global)),
		perHost: int64(perHost),
		hosts:   map[string]*hostState{},
	}
}

func (s *Scheduler) host(name string) *hostState {
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.hosts[name]
	if hs == nil {
		hs = &hostState{sem: semaphore.NewWeighted(s.perHost)}
		s.hosts[name] = hs
	}
	return hs
}

// Acquire takes one global and one host permit, then waits out the
// politeness interval when a crawl delay is supplied. The returned
// release function must be called exactly once after the fetch.
func (s *Scheduler) Acquire(ctx context.Context, host string, delay *time.Duration) (func(), error) {
	if err := s.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	hs := s.host(host)
	if err := hs.sem.Acquire(ctx, 1); err != nil {
		s.global.Release(1)
		return nil, err
	}

	if delay != nil && *delay > 0 {
		hs.gate.Lock()
		wait := time.Until(hs.last.Add(*delay))
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				hs.gate.Unlock()
				hs.sem.Release(1)
				s.global.Release(1)
				return nil, ctx.Err()
			}
		}
		hs.last = time.Now()
		hs.gate.Unlock()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			hs.sem.Release(1)
			s.global.Release(1)
		})
	}
	return release, nil
}

// Hosts returns the number of hosts with lazily created state.
func (s *Scheduler) Hosts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hosts)
}
