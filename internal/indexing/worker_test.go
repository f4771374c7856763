package indexing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurtlabs/gurtd/internal/crawler"
	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/storage"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	seen  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*gurt.Response, error) {
	f.mu.Lock()
	f.seen = append(f.seen, rawURL)
	body, ok := f.pages[rawURL]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("connection refused")
	}
	var headers gurt.Headers
	headers.Add("content-type", "text/html")
	return &gurt.Response{Status: gurt.StatusOK, Headers: headers, Body: []byte(body)}, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

type fakeStore struct {
	mu       sync.Mutex
	statuses map[string]string
	failures int
	pending  []storage.Domain
}

func (f *fakeStore) SetStatus(_ context.Context, name, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("database is locked")
	}
	if f.statuses == nil {
		f.statuses = map[string]string{}
	}
	f.statuses[name] = status
	return nil
}

func (f *fakeStore) ListPending(_ context.Context, limit int) ([]storage.Domain, error) {
	if limit > 0 && limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeStore) status(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[name]
}

func newTestService(t *testing.T, fetch Fetcher, store StatusStore) *Service {
	t.Helper()
	eng := index.OpenMemory()
	t.Cleanup(func() { _ = eng.Close() })
	return New(Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Fetcher:   fetch,
		Engine:    eng,
		Store:     store,
		Scheduler: crawler.NewScheduler(4, 2),
		Renderer: &crawler.Renderer{
			Budget: DefaultRenderBudget,
			Queue:  &crawler.RecrawlQueue{},
		},
	})
}

func waitIdle(t *testing.T, s *Service) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.InFlight() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker did not drain in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEnqueueSingleFlight(t *testing.T) {
	s := newTestService(t, &fakeFetcher{}, nil)

	assert.True(t, s.Enqueue("Docs.Real"))
	assert.False(t, s.Enqueue("docs.real"), "same lowercased domain must not queue twice")
	assert.False(t, s.Enqueue(""))
	assert.Equal(t, 1, s.InFlight())
}

func TestProcessDomainIndexesAndMarksReady(t *testing.T) {
	fetch := &fakeFetcher{pages: map[string]string{
		"gurt://docs.real/robots.txt": "User-agent: *\nDisallow: /private\n",
		"gurt://docs.real/sitemap.xml": `<urlset>
			<loc>/guide</loc>
			<loc>/private/secrets</loc>
			<loc>gurt://docs.real/api</loc>
		</urlset>`,
		"gurt://docs.real/":        "<html><title>Docs  Home</title><body>welcome docs</body></html>",
		"gurt://docs.real/guide":   "<html><title>Guide</title><body>guide content</body></html>",
		"gurt://docs.real/api":     "<html><body>api reference, no title</body></html>",
		"gurt://docs.real/private": "<html><body>should never be fetched</body></html>",
	}}
	store := &fakeStore{}
	s := newTestService(t, fetch, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.True(t, s.Enqueue("docs.real"))
	waitIdle(t, s)
	s.Stop()

	assert.Equal(t, storage.StatusReady, store.status("docs.real"))
	for _, u := range fetch.fetched() {
		assert.NotContains(t, u, "/private/", "disallowed paths must not be fetched")
	}

	hits, err := s.engine.Search([]string{"guide"}, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Guide", hits[0].Title)

	// Titleless pages fall back to the domain.
	hits, err = s.engine.Search([]string{"reference"}, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "docs.real", hits[0].Title)
}

func TestProcessDomainUnreachableMarksFailed(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(t, &fakeFetcher{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.True(t, s.Enqueue("down.real"))
	waitIdle(t, s)
	s.Stop()

	assert.Equal(t, storage.StatusFailed, store.status("down.real"))
	assert.Equal(t, 0, s.InFlight(), "domain must leave the in-flight set")
}

func TestMarkStatusRetriesTransientFailures(t *testing.T) {
	store := &fakeStore{failures: 2}
	s := newTestService(t, &fakeFetcher{pages: map[string]string{
		"gurt://docs.real/": "<html><title>Home</title><body>hello</body></html>",
	}}, store)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.markStatus(context.Background(), log, "docs.real", storage.StatusReady)
	assert.Equal(t, storage.StatusReady, store.status("docs.real"))
}

func TestBootstrapEnqueuesPending(t *testing.T) {
	store := &fakeStore{pending: []storage.Domain{
		{Name: "a.real"}, {Name: "b.real"}, {Name: "c.real"},
	}}
	s := newTestService(t, &fakeFetcher{}, store)

	queued, err := s.Bootstrap(context.Background(), BootstrapOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.Equal(t, 2, s.InFlight())
}

func TestBuildCandidates(t *testing.T) {
	entries := []string{
		"gurt://docs.real/absolute",
		"/path/page",
		"bare/page",
		"",
		"/path/page", // duplicate after normalization
	}
	got := BuildCandidates("docs.real", entries)
	assert.Contains(t, got, "gurt://docs.real/")
	assert.Contains(t, got, "gurt://docs.real/absolute")
	assert.Contains(t, got, "gurt://docs.real/path/page")
	assert.Contains(t, got, "gurt://docs.real/bare/page")
	assert.Len(t, got, 4)

	// Sitemap members come before the plain root seed.
	assert.Equal(t, "gurt://docs.real/", got[len(got)-1])
}

func TestBuildCandidatesCap(t *testing.T) {
	var entries []string
	for i := 0; i < 40; i++ {
		entries = append(entries, fmt.Sprintf("/page-%02d", i))
	}
	got := BuildCandidates("docs.real", entries)
	assert.Len(t, got, 16)
}

func TestExtractTitle(t *testing.T) {
	cases := []struct {
		html string
		want string
	}{
		{"<html><title>  Hello   World </title></html>", "Hello World"},
		{"<html><TITLE>Upper</TITLE></html>", "Upper"},
		{`<html><title lang="en">Attr</title></html>`, "Attr"},
		{"<html><title></title></html>", "docs.real"},
		{"<html><title>never closed", "docs.real"},
		{"<html><body>no title</body></html>", "docs.real"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractTitle(tc.html, "docs.real"), "input %q", tc.html)
	}
}

func TestCandidatePath(t *testing.T) {
	assert.Equal(t, "/guide?x=1", candidatePath("gurt://docs.real/guide?x=1"))
	assert.Equal(t, "/", candidatePath("gurt://docs.real"))
}
