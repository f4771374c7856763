// Package indexing runs the crawl pipeline: domain intake with
// per-domain single-flight, candidate enumeration, polite fetching,
// rendering, and ingestion into the shared index.
package indexing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gurtlabs/gurtd/internal/crawler"
	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/link"
	"github.com/gurtlabs/gurtd/internal/storage"
)

// Fetcher is the slice of the transport client the worker needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*gurt.Response, error)
}

// StatusStore is the slice of the storage adapter the worker needs.
// A nil store disables status tracking; everything else still runs.
type StatusStore interface {
	SetStatus(ctx context.Context, name, status string) error
	ListPending(ctx context.Context, limit int) ([]storage.Domain, error)
}

// Options wires the worker's collaborators.
type Options struct {
	Logger    *slog.Logger
	Fetcher   Fetcher
	Engine    index.Engine
	Store     StatusStore
	Scheduler *crawler.Scheduler
	Renderer  *crawler.Renderer
	Graph     *link.Graph
	UserAgent string
}

// DefaultRenderBudget bounds the simulated script pass per page.
const DefaultRenderBudget = 120 * time.Millisecond

const (
	statusRetries = 3
	statusBackoff = 100 * time.Millisecond
)

// Service is the single-worker ingestion service. Enqueue may be
// called from any goroutine; domains are processed one at a time.
//
// Goroutine lifecycle: Start launches exactly one worker goroutine
// plus a watcher that wakes the worker on context cancellation. Stop
// (or cancelling the context) drains nothing; queued domains that
// never ran simply stay pending in storage.
type Service struct {
	log       *slog.Logger
	fetch     Fetcher
	engine    index.Engine
	store     StatusStore
	sched     *crawler.Scheduler
	renderer  *crawler.Renderer
	graph     *link.Graph
	userAgent string

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []string
	inflight map[string]struct{}
	closed   bool

	wg sync.WaitGroup
}

func New(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = &crawler.Renderer{
			Budget: DefaultRenderBudget,
			Cost:   5 * time.Millisecond,
			Queue:  &crawler.RecrawlQueue{},
		}
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = crawler.NewScheduler(8, 2)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "gurtd/0.1"
	}
	s := &Service{
		log:       log,
		fetch:     opts.Fetcher,
		engine:    opts.Engine,
		store:     opts.Store,
		sched:     sched,
		renderer:  renderer,
		graph:     opts.Graph,
		userAgent: ua,
		inflight:  map[string]struct{}{},
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Enqueue hands a domain to the worker. It reports false when the
// domain is already queued or being processed, or the service is
// stopped; the caller treats that as success (the work exists).
func (s *Service) Enqueue(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, dup := s.inflight[domain]; dup {
		return false
	}
	s.inflight[domain] = struct{}{}
	s.queue = append(s.queue, domain)
	s.cond.Signal()
	return true
}

// InFlight reports how many domains are queued or processing.
func (s *Service) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Start launches the worker. It returns immediately; cancel ctx or
// call Stop to shut down.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.closed = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
}

// Stop shuts the worker down and waits for the current domain to
// finish.
func (s *Service) Stop() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed && len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		domain := s.queue[0]
		s.queue = s.queue[1:]
		closed := s.closed
		s.mu.Unlock()

		if closed {
			s.release(domain)
			continue
		}

		s.processDomain(ctx, domain)
		s.release(domain)
	}
}

func (s *Service) release(domain string) {
	s.mu.Lock()
	delete(s.inflight, domain)
	s.mu.Unlock()
}

func (s *Service) processDomain(ctx context.Context, domain string) {
	log := s.log.With("domain", domain)
	started := time.Now()

	policy, delay := s.fetchRobots(ctx, domain)
	candidates := BuildCandidates(domain, s.fetchSitemap(ctx, domain))

	indexed := 0
	for _, u := range candidates {
		if policy != nil && !policy.IsAllowed(s.userAgent, candidatePath(u)) {
			log.Debug("skipping disallowed url", "url", u)
			continue
		}
		if s.indexURL(ctx, log, domain, u, delay) {
			indexed++
		}
	}

	if err := s.engine.Commit(); err != nil {
		log.Error("index commit failed", "err", err)
	}
	if err := s.engine.Refresh(); err != nil {
		log.Error("index refresh failed", "err", err)
	}

	if s.renderer.Queue != nil {
		for _, item := range s.renderer.Queue.Drain() {
			log.Info("render timed out, queued for re-crawl",
				"url", item.URL, "reason", item.Reason.String())
		}
	}

	status := storage.StatusReady
	if indexed == 0 {
		status = storage.StatusFailed
	}
	s.markStatus(ctx, log, domain, status)
	log.Info("domain processed",
		"pages", indexed, "candidates", len(candidates),
		"status", status, "took", time.Since(started))
}

// indexURL fetches, renders and indexes one candidate. It reports
// whether a document was added.
func (s *Service) indexURL(ctx context.Context, log *slog.Logger, domain, rawURL string, delay *time.Duration) bool {
	release, err := s.sched.Acquire(ctx, domain, delay)
	if err != nil {
		log.Warn("scheduler acquire failed", "url", rawURL, "err", err)
		return false
	}
	resp, err := s.fetch.Fetch(ctx, rawURL)
	release()
	if err != nil {
		log.Warn("fetch failed", "url", rawURL, "err", err)
		return false
	}
	if !resp.Status.Success() {
		log.Debug("skipping non-2xx response", "url", rawURL, "status", int(resp.Status))
		return false
	}
	if ct, ok := resp.Headers.Get("content-type"); ok && !strings.HasPrefix(ct, "text/html") {
		log.Debug("skipping non-html content", "url", rawURL, "content_type", ct)
		return false
	}

	body := string(resp.Body)
	rendered := s.renderer.Render(rawURL, body)

	doc := index.Doc{
		URL:        rawURL,
		Domain:     domain,
		Title:      ExtractTitle(body, domain),
		Content:    rendered.Content,
		FetchTime:  time.Now().Unix(),
		Language:   "en",
		RenderMode: string(rendered.Mode),
	}
	if err := s.engine.Add(doc); err != nil {
		log.Error("index add failed", "url", rawURL, "err", err)
		return false
	}

	if s.graph != nil {
		links, err := link.ExtractLinks(body)
		if err == nil {
			for _, l := range links {
				s.graph.AddEdge(domain, link.LinkDomain(l))
			}
		}
	}
	return true
}

// fetchRobots loads and parses robots.txt. Any failure means an empty
// policy: crawl everything, no delay.
func (s *Service) fetchRobots(ctx context.Context, domain string) (*crawler.RobotsPolicy, *time.Duration) {
	resp, err := s.fetch.Fetch(ctx, "gurt://"+domain+"/robots.txt")
	if err != nil || !resp.Status.Success() {
		return nil, nil
	}
	policy := crawler.ParseRobots(string(resp.Body))
	return policy, policy.CrawlDelay(s.userAgent)
}

// fetchSitemap loads sitemap.xml and extracts its loc entries. A
// missing sitemap is the common case and not an error.
func (s *Service) fetchSitemap(ctx context.Context, domain string) []string {
	resp, err := s.fetch.Fetch(ctx, "gurt://"+domain+"/sitemap.xml")
	if err != nil || !resp.Status.Success() {
		return nil
	}
	return crawler.ExtractSitemapLocs(string(resp.Body))
}

// markStatus updates the domain's storage status with bounded retries
// and doubling backoff. Exhaustion is logged; the worker moves on.
func (s *Service) markStatus(ctx context.Context, log *slog.Logger, domain, status string) {
	if s.store == nil {
		return
	}
	backoff := statusBackoff
	var err error
	for attempt := 1; attempt <= statusRetries; attempt++ {
		if err = s.store.SetStatus(ctx, domain, status); err == nil {
			return
		}
		if attempt < statusRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
		}
	}
	log.Error("status update failed, giving up", "status", status, "err", err)
}
