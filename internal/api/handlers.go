package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/storage"
)

// InFlighter reports how many domains the ingestion worker holds.
type InFlighter interface {
	InFlight() int
}

// CacheStatser reports resolver cache hit/miss counters.
type CacheStatser interface {
	CacheStats() (hits, misses int)
}

// Handler bundles the dependencies the admin endpoints read from.
// Store, Worker, and Resolver may be nil; the endpoints degrade to
// partial output.
type Handler struct {
	logger    *slog.Logger
	engine    index.Engine
	store     *storage.Store
	worker    InFlighter
	resolver  CacheStatser
	startTime time.Time
}

func NewHandler(engine index.Engine, store *storage.Store, worker InFlighter, resolver CacheStatser, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		store:     store,
		worker:    worker,
		resolver:  resolver,
		startTime: time.Now(),
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

// Health reports liveness only; readiness lives on the overlay side.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

type statsResponse struct {
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	GoRoutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	RSSMB         float64 `json:"rss_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
	NumCPU        int     `json:"num_cpu"`

	IndexEngine string `json:"index_engine"`
	IndexDocs   uint64 `json:"index_docs"`

	WorkerInFlight int            `json:"worker_in_flight"`
	ResolverHits   int            `json:"resolver_cache_hits"`
	ResolverMisses int            `json:"resolver_cache_misses"`
	Domains        map[string]int `json:"domains,omitempty"`
}

func (h *Handler) Stats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(h.startTime)
	resp := statsResponse{
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: int64(uptime.Seconds()),
		GoRoutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(m.Alloc) / 1024 / 1024,
		NumCPU:        runtime.NumCPU(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			resp.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
	}

	if h.engine != nil {
		resp.IndexEngine = h.engine.Name()
		if n, err := h.engine.DocCount(); err == nil {
			resp.IndexDocs = n
		}
	}
	if h.worker != nil {
		resp.WorkerInFlight = h.worker.InFlight()
	}
	if h.resolver != nil {
		resp.ResolverHits, resp.ResolverMisses = h.resolver.CacheStats()
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if counts, err := h.store.CountByStatus(ctx); err == nil {
			resp.Domains = counts
		}
	}

	c.JSON(http.StatusOK, resp)
}

type pendingDomain struct {
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (h *Handler) PendingDomains(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"domains": []pendingDomain{}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	pending, err := h.store.ListPending(ctx, 100)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("pending domains query failed", "err", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]pendingDomain, 0, len(pending))
	for _, d := range pending {
		out = append(out, pendingDomain{Name: d.Name, Source: d.Source, SubmittedAt: d.SubmittedAt})
	}
	c.JSON(http.StatusOK, gin.H{"domains": out})
}
