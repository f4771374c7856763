// Package services assembles the long-lived components of gurtd from
// a loaded configuration: storage, index, resolver, transport,
// crawler, worker, ranking state, and the request router.
package services

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gurtlabs/gurtd/internal/config"
	"github.com/gurtlabs/gurtd/internal/crawler"
	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/indexing"
	"github.com/gurtlabs/gurtd/internal/link"
	"github.com/gurtlabs/gurtd/internal/resolver"
	"github.com/gurtlabs/gurtd/internal/router"
	"github.com/gurtlabs/gurtd/internal/search"
	"github.com/gurtlabs/gurtd/internal/storage"
	"github.com/gurtlabs/gurtd/internal/transport"
)

// Services holds every shared component. One value is built at
// startup and threaded through the listeners.
type Services struct {
	Logger    *slog.Logger
	Store     *storage.Store
	Engine    index.Engine
	Resolver  *resolver.Resolver
	Client    *transport.Client
	Scheduler *crawler.Scheduler
	Graph     *link.Graph
	Authority *link.AuthorityStore
	Worker    *indexing.Service
	Router    *router.Router
}

// New wires the component graph. A missing database degrades to
// nil-store operation; everything else always comes up.
func New(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	s := &Services{Logger: logger}

	if cfg.DBPath != "" {
		store, err := storage.Open(cfg.DBPath)
		if err != nil {
			// Queries must keep working without the database.
			logger.Error("storage unavailable, submissions will not persist", "err", err)
		} else {
			s.Store = store
		}
	}

	s.Engine = index.Open(cfg.IndexDir, logger)

	s.Resolver = resolver.New(resolver.Config{
		Host:      cfg.DNSHost,
		Addr:      cfg.DNSAddr,
		Port:      cfg.DNSPort,
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})

	s.Client = transport.New(transport.Options{
		Logger:   logger,
		Resolver: s.Resolver,
		Timeouts: transport.Timeouts{
			Connect:   cfg.ConnectTimeout,
			Handshake: cfg.HandshakeTimeout,
			Fetch:     cfg.FetchTimeout,
			IdleRead:  cfg.IdleReadTimeout,
		},
		UserAgent: cfg.UserAgent,
	})

	s.Scheduler = crawler.NewScheduler(cfg.CrawlGlobal, cfg.CrawlPerHost)
	s.Graph = link.NewGraph()
	s.Authority = link.NewAuthorityStore()
	if cfg.AuthoritySnapshot != "" {
		if err := s.Authority.LoadSnapshot(cfg.AuthoritySnapshot); err != nil {
			logger.Warn("authority snapshot unreadable, starting empty", "err", err)
		}
	}

	var workerStore indexing.StatusStore
	if s.Store != nil {
		workerStore = s.Store
	}
	s.Worker = indexing.New(indexing.Options{
		Logger:    logger,
		Fetcher:   s.Client,
		Engine:    s.Engine,
		Store:     workerStore,
		Scheduler: s.Scheduler,
		Graph:     s.Graph,
		UserAgent: cfg.UserAgent,
	})

	var routerStore router.SubmissionStore
	if s.Store != nil {
		routerStore = s.Store
	}
	s.Router = router.New(router.Options{
		Logger:    logger,
		Engine:    s.Engine,
		Store:     routerStore,
		Worker:    s.Worker,
		Cache:     search.NewHotCache(search.DefaultHotTTL),
		Authority: s.Authority,
		UIDir:     resolveUIDir(cfg.UIDir),
		RateLimit: cfg.SubmitRate,
		RateWin:   cfg.SubmitWindow,
	})

	return s, nil
}

// resolveUIDir picks the UI directory: the configured path, then ui/
// under the working directory, then ui/ next to the executable. Empty
// means inline fallback pages only.
func resolveUIDir(configured string) string {
	if configured != "" {
		return configured
	}
	if info, err := os.Stat("ui"); err == nil && info.IsDir() {
		return "ui"
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Join(filepath.Dir(exe), "ui")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// RecomputeAuthority runs PageRank over the current link graph and
// swaps the result into the authority store. Intended to run
// periodically from the main loop.
func (s *Services) RecomputeAuthority(alpha float64) {
	if s.Graph.Len() == 0 {
		return
	}
	started := time.Now()
	ranks := s.Graph.PageRank()
	combined := make(map[string]float64, len(ranks))
	for domain, pr := range ranks {
		combined[domain] = link.CombineAuthority(pr, search.TrustFromDepth(0), alpha)
	}
	s.Authority.Replace(combined)
	s.Logger.Info("authority recomputed",
		"domains", len(combined), "took", time.Since(started))
}

// Close releases everything that holds file handles.
func (s *Services) Close() {
	s.Worker.Stop()
	if err := s.Engine.Close(); err != nil {
		s.Logger.Error("index close failed", "err", err)
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			s.Logger.Error("storage close failed", "err", err)
		}
	}
}
