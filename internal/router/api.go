package router

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/link"
	"github.com/gurtlabs/gurtd/internal/query"
	"github.com/gurtlabs/gurtd/internal/search"
)

const (
	defaultPage = 1
	defaultSize = 10
)

// searchResponse is the /api/search wire shape.
type searchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

func (r *Router) apiSearch(rawQuery string) *gurt.Response {
	q := queryParam(rawQuery, "q")
	if q == "" {
		return errorResponse(gurt.StatusBadRequest, "missing query")
	}

	// Test hooks, read per request so integration tests can flip them.
	if os.Getenv("GURT_OVERLOADED") != "" {
		return errorResponse(gurt.StatusTooManyRequests, "overloaded")
	}
	if os.Getenv("GURT_FORCE_ERROR") != "" {
		return errorResponse(gurt.StatusInternalError, "forced error")
	}

	parsed := query.Parse(q)
	key := parsed.NormalizeKey()
	if payload, ok := r.cache.Get(key); ok {
		return &gurt.Response{Status: gurt.StatusOK, Body: payload}
	}

	results := r.runSearch(parsed)
	payload, _ := json.Marshal(searchResponse{Query: q, Results: results, Count: len(results)})
	r.cache.Put(key, payload)
	return &gurt.Response{Status: gurt.StatusOK, Body: payload}
}

// runSearch executes the engine query and applies the rescorer plus
// any site/filetype filters.
func (r *Router) runSearch(parsed query.Parsed) []search.Result {
	hits, err := r.engine.Search(parsed.Terms, defaultPage, defaultSize)
	if err != nil {
		r.log.Error("engine search failed", "err", err)
		return []search.Result{}
	}
	hits = filterHits(hits, parsed)
	results := search.Rescore(hits, r.authority, time.Now())
	if results == nil {
		results = []search.Result{}
	}
	return results
}

func filterHits(hits []index.Hit, parsed query.Parsed) []index.Hit {
	if parsed.Site == "" && parsed.Filetype == "" {
		return hits
	}
	kept := hits[:0]
	for _, h := range hits {
		if parsed.Site != "" && !strings.EqualFold(h.Domain, parsed.Site) {
			continue
		}
		if parsed.Filetype != "" && !strings.HasSuffix(strings.ToLower(h.URL), "."+parsed.Filetype) {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

// sitesRequest accepts either a bare domain or a full overlay URL.
type sitesRequest struct {
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

func (r *Router) apiSites(ctx context.Context, req *gurt.Request, peerAddr string) *gurt.Response {
	addr := clientAddr(req, peerAddr)
	if !r.limiter.Allow(addr) {
		r.log.Info("submission rate limited", "client", addr)
		return errorResponse(gurt.StatusTooManyRequests, "rate limited")
	}

	var body sitesRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return errorResponse(gurt.StatusBadRequest, "invalid json body")
	}

	domain := strings.ToLower(strings.TrimSpace(body.Domain))
	if domain == "" && body.URL != "" {
		domain = link.LinkDomain(strings.TrimSpace(body.URL))
	}
	if !validDomain(domain) {
		return errorResponse(gurt.StatusBadRequest, "invalid domain")
	}

	r.submitted.Add(domain)

	// Persistence must not block the response; the worker marks the
	// final status later anyway.
	if r.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.store.UpsertDomain(ctx, domain, "api"); err != nil {
				r.log.Error("submission upsert failed", "domain", domain, "err", err)
			}
		}()
	}
	if r.worker != nil {
		r.worker.Enqueue(domain)
	}

	r.log.Info("domain submitted", "domain", domain, "client", addr)
	return jsonResponse(gurt.StatusOK, map[string]string{"status": "accepted", "domain": domain})
}

// clientAddr picks the address the rate limiter keys on: the first
// x-forwarded-for entry when present, else the peer socket host.
func clientAddr(req *gurt.Request, peerAddr string) string {
	if fwd, ok := req.Headers.Get("x-forwarded-for"); ok {
		if first, _, found := strings.Cut(fwd, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(peerAddr); err == nil {
		return host
	}
	return peerAddr
}

// validDomain enforces the submission character set.
func validDomain(domain string) bool {
	if domain == "" || len(domain) > 255 {
		return false
	}
	for _, c := range domain {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}

// queryParam extracts and percent-decodes one query parameter. A '+'
// stays literal; only % escapes decode.
func queryParam(rawQuery, key string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k != key {
			continue
		}
		decoded, err := url.PathUnescape(v)
		if err != nil {
			return v
		}
		return decoded
	}
	return ""
}
