// Package router dispatches parsed overlay requests to the UI, query
// and submission handlers. It is transport-agnostic: the server hands
// it a request plus the peer address and writes back whatever response
// it returns.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/search"
)

// Enqueuer hands submitted domains to the ingestion worker.
type Enqueuer interface {
	Enqueue(domain string) bool
}

// SubmissionStore persists accepted submissions.
type SubmissionStore interface {
	UpsertDomain(ctx context.Context, name, source string) error
}

// Options wires the router's collaborators. Engine is required; the
// rest degrade gracefully when nil.
type Options struct {
	Logger    *slog.Logger
	Engine    index.Engine
	Store     SubmissionStore
	Worker    Enqueuer
	Cache     *search.HotCache
	Authority search.AuthorityLookup
	UIDir     string
	RateLimit int
	RateWin   time.Duration
}

// Router routes one request to one handler.
type Router struct {
	log       *slog.Logger
	engine    index.Engine
	store     SubmissionStore
	worker    Enqueuer
	cache     *search.HotCache
	authority search.AuthorityLookup
	uiDir     string
	limiter   *rateLimiter
	submitted *submittedSet
}

func New(opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cache := opts.Cache
	if cache == nil {
		cache = search.NewHotCache(search.DefaultHotTTL)
	}
	auth := opts.Authority
	if auth == nil {
		auth = search.NoAuthority{}
	}
	return &Router{
		log:       log,
		engine:    opts.Engine,
		store:     opts.Store,
		worker:    opts.Worker,
		cache:     cache,
		authority: auth,
		uiDir:     opts.UIDir,
		limiter:   newRateLimiter(opts.RateLimit, opts.RateWin),
		submitted: newSubmittedSet(),
	}
}

// Handle dispatches req and always produces a response. peerAddr is
// the remote socket address, used for submission rate limiting.
func (r *Router) Handle(ctx context.Context, req *gurt.Request, peerAddr string) *gurt.Response {
	path, rawQuery, _ := strings.Cut(req.Path, "?")

	switch {
	case req.Method == "GET" && path == "/":
		return r.serveIndex()
	case req.Method == "GET" && path == "/search":
		return r.serveSearch(rawQuery)
	case req.Method == "GET" && path == "/domains":
		return r.serveDomains()
	case req.Method == "GET" && strings.HasPrefix(path, "/assets/"):
		return r.serveAsset(strings.TrimPrefix(path, "/assets/"))
	case req.Method == "GET" && path == "/health/ready":
		return jsonResponse(gurt.StatusOK, map[string]string{"status": "ready"})
	case req.Method == "GET" && path == "/api/search":
		return r.apiSearch(rawQuery)
	case req.Method == "POST" && path == "/api/sites":
		return r.apiSites(ctx, req, peerAddr)
	}

	r.log.Debug("unknown route", "method", req.Method, "path", path)
	return errorResponse(gurt.StatusBadRequest, "unknown route")
}

// jsonResponse encodes v as the response body. Encoding failures
// cannot happen for the fixed shapes used here.
func jsonResponse(status gurt.Status, v interface{}) *gurt.Response {
	body, _ := json.Marshal(v)
	return &gurt.Response{Status: status, Body: body}
}

func errorResponse(status gurt.Status, msg string) *gurt.Response {
	return jsonResponse(status, map[string]string{"error": msg})
}

func htmlResponse(body string) *gurt.Response {
	var headers gurt.Headers
	headers.Add("content-type", "text/html")
	return &gurt.Response{Status: gurt.StatusOK, Headers: headers, Body: []byte(body)}
}
