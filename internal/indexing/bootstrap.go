package indexing

import (
	"context"
	"fmt"
)

// BootstrapOptions bounds the startup re-enqueue of pending domains.
type BootstrapOptions struct {
	Limit    int
	LogEvery int
}

// Bootstrap re-enqueues domains left pending by a previous run so a
// restart resumes where it stopped. It returns how many were queued.
func (s *Service) Bootstrap(ctx context.Context, opts BootstrapOptions) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 200
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 50
	}

	pending, err := s.store.ListPending(ctx, opts.Limit)
	if err != nil {
		return 0, fmt.Errorf("list pending domains: %w", err)
	}

	queued := 0
	for _, d := range pending {
		if s.Enqueue(d.Name) {
			queued++
		}
		if queued > 0 && queued%opts.LogEvery == 0 {
			s.log.Info("bootstrap progress", "queued", queued, "total", len(pending))
		}
	}
	s.log.Info("bootstrap complete", "queued", queued, "pending", len(pending))
	return queued, nil
}
