package search

import (
	"context"
	"sync"
	"time"
)

// MergeTopK merges per-shard result lists, each already sorted by
// descending score, into a single top-k list. Ties between shards go
// to the lower shard index, and order within a shard is preserved, so
// repeated merges of the same inputs yield identical output.
func MergeTopK(shards [][]Result, k int) []Result {
	if k <= 0 {
		return nil
	}
	heads := make([]int, len(shards))
	out := make([]Result, 0, k)
	for len(out) < k {
		best := -1
		for i, rs := range shards {
			if heads[i] >= len(rs) {
				continue
			}
			if best < 0 || rs[heads[i]].Score > shards[best][heads[best]].Score {
				best = i
			}
		}
		if best < 0 {
			break
		}
		out = append(out, shards[best][heads[best]])
		heads[best]++
	}
	return out
}

// ShardFunc produces one shard's ranked results.
type ShardFunc func(ctx context.Context) ([]Result, error)

// Gather runs every shard concurrently and collects whatever finished
// within the timeout. Late or failed shards are dropped; the returned
// slice keeps shard order for the ones that made it.
func Gather(ctx context.Context, shards []ShardFunc, timeout time.Duration) [][]Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu        sync.Mutex
		sealed    bool
		collected = make([][]Result, len(shards))
	)
	var wg sync.WaitGroup
	done := make(chan struct{})
	for i, fn := range shards {
		wg.Add(1)
		go func(i int, fn ShardFunc) {
			defer wg.Done()
			rs, err := fn(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			if !sealed {
				collected[i] = rs
			}
			mu.Unlock()
		}(i, fn)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	sealed = true
	out := make([][]Result, 0, len(shards))
	for _, rs := range collected {
		if rs != nil {
			out = append(out, rs)
		}
	}
	mu.Unlock()
	return out
}
