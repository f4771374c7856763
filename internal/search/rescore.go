package search

import (
	"math"
	"sort"
	"time"

	"github.com/gurtlabs/gurtd/internal/index"
)

// Signal weights. BM25 dominates; authority, trust and recency nudge.
const (
	weightBM25      = 0.6
	weightAuthority = 0.2
	weightTrust     = 0.1
	weightRecency   = 0.1

	recencyHalfLife = 7 * 24 * time.Hour
)

// Result is a ranked hit after rescoring.
type Result struct {
	URL       string  `json:"url"`
	Domain    string  `json:"domain"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	FetchTime int64   `json:"fetch_time"`
}

// AuthorityLookup resolves a precomputed authority score for a
// document URL. Unknown URLs score zero.
type AuthorityLookup interface {
	Authority(url string) float64
}

// NoAuthority is the lookup used when no snapshot is loaded.
type NoAuthority struct{}

func (NoAuthority) Authority(string) float64 { return 0 }

// TrustFromDepth maps a crawl depth to a trust signal in (0, 1].
// Directly submitted pages carry depth zero and full trust.
func TrustFromDepth(depth int) float64 {
	if depth < 0 {
		depth = 0
	}
	return 1 / float64(1+depth)
}

// RecencyScore decays by half every week of document age. Future
// fetch times clamp to a score of one.
func RecencyScore(fetchTime int64, now time.Time) float64 {
	age := now.Unix() - fetchTime
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/recencyHalfLife.Seconds())
}

// Rescore combines the BM25 score with authority, trust and recency
// into a single ranking. BM25 scores are normalized against the best
// hit in the batch so the weight mix stays comparable across queries.
// The sort is stable: ties keep the engine's order.
func Rescore(hits []index.Hit, auth AuthorityLookup, now time.Time) []Result {
	if len(hits) == 0 {
		return nil
	}
	if auth == nil {
		auth = NoAuthority{}
	}

	maxBM := 0.0
	for _, h := range hits {
		if h.Score > maxBM {
			maxBM = h.Score
		}
	}
	maxBM = math.Max(1e-6, maxBM)

	// All hits reach rescoring through the same submission pipeline,
	// which indexes pages at depth zero.
	trust := TrustFromDepth(0)

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		score := weightBM25*(h.Score/maxBM) +
			weightAuthority*auth.Authority(h.URL) +
			weightTrust*trust +
			weightRecency*RecencyScore(h.FetchTime, now)
		results = append(results, Result{
			URL:       h.URL,
			Domain:    h.Domain,
			Title:     h.Title,
			Score:     score,
			FetchTime: h.FetchTime,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
