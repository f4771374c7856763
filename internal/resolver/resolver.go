// Package resolver implements overlay name resolution: a JSON exchange
// with the network's DNS endpoint, CNAME chasing with a depth bound,
// and a short TTL cache.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/transport"
)

const (
	defaultTTL     = 60 * time.Second
	attemptTimeout = 2 * time.Second
	maxChainDepth  = 5
	cacheEntries   = 4096
)

// Config locates the resolver endpoint. Addr, when set, is a literal
// IP used directly; otherwise Host goes through OS name resolution.
type Config struct {
	Host string // resolver domain, e.g. "dns.web"
	Addr string // optional literal address
	Port int    // 0 means the overlay default

	UserAgent string
	Logger    *slog.Logger
}

// cached is a resolved address with the CNAME chain depth that
// produced it.
type cached struct {
	addr  netip.Addr
	depth int
}

// Resolver resolves overlay names. It owns a transport client with no
// resolver of its own, so lookups for the endpoint can never recurse
// back into it.
type Resolver struct {
	logger   *slog.Logger
	endpoint string
	cache    *TTLCache[string, cached]
	ttl      time.Duration

	// do performs the overlay exchange; swapped out in tests.
	do func(ctx context.Context, method, url string, headers gurt.Headers, body []byte) (*gurt.Response, error)
}

// New builds a resolver. The per-attempt deadline bounds every stage
// of the underlying exchange.
func New(cfg Config) *Resolver {
	port := cfg.Port
	if port <= 0 {
		port = gurt.DefaultPort
	}
	host := cfg.Addr
	if host == "" {
		host = cfg.Host
	}
	if host == "" {
		host = "dns.web"
	}

	client := transport.New(transport.Options{
		Logger:    cfg.Logger,
		UserAgent: cfg.UserAgent,
		Attempts:  1,
		Timeouts: transport.Timeouts{
			Connect:   attemptTimeout,
			Handshake: attemptTimeout,
			Fetch:     attemptTimeout,
		},
	})

	endpoint := "gurt://" + host
	if port != gurt.DefaultPort {
		endpoint = "gurt://" + net.JoinHostPort(host, strconv.Itoa(port))
	}

	return &Resolver{
		logger:   cfg.Logger,
		endpoint: endpoint,
		cache:    NewTTLCache[string, cached](cacheEntries),
		ttl:      defaultTTL,
		do:       client.Do,
	}
}

// Resolve returns an address for name. Implements the transport's
// resolver contract.
func (r *Resolver) Resolve(ctx context.Context, name string) (netip.Addr, error) {
	addr, _, err := r.ResolveFull(ctx, name)
	return addr, err
}

// ResolveFull resolves name and reports the CNAME chain depth walked
// to reach the final record. Successes are cached under both the final
// and the originally queried name; failures are never cached.
func (r *Resolver) ResolveFull(ctx context.Context, name string) (netip.Addr, int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return netip.Addr{}, 0, fmt.Errorf("resolve: empty name")
	}
	if hit, ok := r.cache.Get(name); ok {
		return hit.addr, hit.depth, nil
	}

	original := name
	for depth := 0; depth <= maxChainDepth; depth++ {
		records, err := r.query(ctx, name)
		if err != nil {
			return netip.Addr{}, 0, err
		}

		if addr, ok := pickAddress(records); ok {
			entry := cached{addr: addr, depth: depth}
			r.cache.Set(name, entry, r.ttl)
			if original != name {
				r.cache.Set(original, entry, r.ttl)
			}
			if r.logger != nil {
				r.logger.Debug("resolved", "name", original, "addr", addr, "depth", depth)
			}
			return addr, depth, nil
		}

		next, ok := pickCNAME(records)
		if !ok {
			return netip.Addr{}, 0, fmt.Errorf("resolve %s: no address records", name)
		}
		name = strings.ToLower(strings.TrimSuffix(next, "."))
	}
	return netip.Addr{}, 0, fmt.Errorf("resolve %s: cname chain exceeds %d", original, maxChainDepth)
}

// record is one entry of the resolver's JSON answer.
type record struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (r *Resolver) query(ctx context.Context, name string) ([]record, error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"domain": name})
	var headers gurt.Headers
	headers.Add("content-type", "application/json")

	resp, err := r.do(ctx, "POST", r.endpoint+"/resolve-full", headers, body)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}
	if !resp.Status.Success() {
		return nil, fmt.Errorf("resolve %s: status %s", name, resp.Status)
	}

	var parsed struct {
		Records []record `json:"records"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("resolve %s: decode answer: %w", name, err)
	}
	return parsed.Records, nil
}

// pickAddress prefers the first A record, then the first AAAA.
func pickAddress(records []record) (netip.Addr, bool) {
	for _, rec := range records {
		if rec.Type == "A" {
			if addr, err := netip.ParseAddr(rec.Value); err == nil {
				return addr, true
			}
		}
	}
	for _, rec := range records {
		if rec.Type == "AAAA" {
			if addr, err := netip.ParseAddr(rec.Value); err == nil {
				return addr, true
			}
		}
	}
	return netip.Addr{}, false
}

func pickCNAME(records []record) (string, bool) {
	for _, rec := range records {
		if rec.Type == "CNAME" && rec.Value != "" {
			return rec.Value, true
		}
	}
	return "", false
}

// CacheStats exposes hit/miss counters for the ops endpoint.
func (r *Resolver) CacheStats() (hits, misses int) {
	return r.cache.Stats()
}
