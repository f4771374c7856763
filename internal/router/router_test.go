package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/index"
	"github.com/gurtlabs/gurtd/internal/search"
)

type recordingWorker struct {
	mu      sync.Mutex
	domains []string
}

func (w *recordingWorker) Enqueue(domain string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.domains = append(w.domains, domain)
	return true
}

func (w *recordingWorker) enqueued() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.domains...)
}

type recordingStore struct {
	upserts chan string
}

func (s *recordingStore) UpsertDomain(_ context.Context, name, source string) error {
	s.upserts <- name + "/" + source
	return nil
}

func newTestRouter(t *testing.T, worker Enqueuer, store SubmissionStore) *Router {
	t.Helper()
	eng := index.OpenMemory()
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.Add(index.Doc{
		URL: "gurt://docs.real/guide", Domain: "docs.real", Title: "Rust Guide",
		Content: "rust language guide", FetchTime: time.Now().Unix(),
		Language: "en", RenderMode: "static",
	}))
	require.NoError(t, eng.Add(index.Doc{
		URL: "gurt://blog.real/rust.txt", Domain: "blog.real", Title: "Rust Notes",
		Content: "rust notes", FetchTime: time.Now().Unix(),
		Language: "en", RenderMode: "static",
	}))
	require.NoError(t, eng.Commit())

	return New(Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Engine:    eng,
		Store:     store,
		Worker:    worker,
		Cache:     search.NewHotCache(time.Minute),
		RateLimit: 5,
		RateWin:   time.Minute,
	})
}

func get(r *Router, path string) *gurt.Response {
	return r.Handle(context.Background(), &gurt.Request{Method: "GET", Path: path}, "10.0.0.1:50000")
}

func post(r *Router, path, body, peer string) *gurt.Response {
	return r.Handle(context.Background(), &gurt.Request{
		Method: "POST", Path: path, Body: []byte(body),
	}, peer)
}

func TestHealthReady(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	resp := get(r, "/health/ready")
	assert.Equal(t, gurt.StatusOK, resp.Status)
	assert.JSONEq(t, `{"status":"ready"}`, string(resp.Body))
}

func TestUnknownRouteIs400(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	assert.Equal(t, gurt.StatusBadRequest, get(r, "/nope").Status)
	resp := r.Handle(context.Background(), &gurt.Request{Method: "DELETE", Path: "/"}, "10.0.0.1:1")
	assert.Equal(t, gurt.StatusBadRequest, resp.Status)
}

func TestAPISearchEmptyQuery(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	assert.Equal(t, gurt.StatusBadRequest, get(r, "/api/search").Status)
	assert.Equal(t, gurt.StatusBadRequest, get(r, "/api/search?q=").Status)
}

func TestAPISearchReturnsResults(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	resp := get(r, "/api/search?q=rust%20guide")
	require.Equal(t, gurt.StatusOK, resp.Status)

	var body searchResponse
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.Equal(t, "rust guide", body.Query)
	assert.Equal(t, len(body.Results), body.Count)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "gurt://docs.real/guide", body.Results[0].URL)
}

func TestAPISearchCacheServesSecondCall(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	first := get(r, "/api/search?q=rust")
	require.Equal(t, gurt.StatusOK, first.Status)
	second := get(r, "/api/search?q=rust")
	require.Equal(t, gurt.StatusOK, second.Status)
	assert.Equal(t, string(first.Body), string(second.Body))
}

func TestAPISearchSiteFilter(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	resp := get(r, "/api/search?q=rust%20site:blog.real")
	require.Equal(t, gurt.StatusOK, resp.Status)

	var body searchResponse
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	require.NotEmpty(t, body.Results)
	for _, res := range body.Results {
		assert.Equal(t, "blog.real", res.Domain)
	}
}

func TestAPISearchFiletypeFilter(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	resp := get(r, "/api/search?q=rust%20filetype:txt")
	require.Equal(t, gurt.StatusOK, resp.Status)

	var body searchResponse
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "gurt://blog.real/rust.txt", body.Results[0].URL)
}

func TestAPISearchTestHooks(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	t.Setenv("GURT_OVERLOADED", "1")
	assert.Equal(t, gurt.StatusTooManyRequests, get(r, "/api/search?q=rust").Status)
	t.Setenv("GURT_OVERLOADED", "")

	t.Setenv("GURT_FORCE_ERROR", "1")
	assert.Equal(t, gurt.StatusInternalError, get(r, "/api/search?q=rust").Status)
}

func TestAPISitesAcceptsDomain(t *testing.T) {
	worker := &recordingWorker{}
	store := &recordingStore{upserts: make(chan string, 1)}
	r := newTestRouter(t, worker, store)

	resp := post(r, "/api/sites", `{"domain":"New-Site.Real"}`, "10.0.0.1:50000")
	require.Equal(t, gurt.StatusOK, resp.Status)
	assert.JSONEq(t, `{"status":"accepted","domain":"new-site.real"}`, string(resp.Body))
	assert.Equal(t, []string{"new-site.real"}, worker.enqueued())

	select {
	case up := <-store.upserts:
		assert.Equal(t, "new-site.real/api", up)
	case <-time.After(2 * time.Second):
		t.Fatal("upsert never ran")
	}
}

func TestAPISitesAcceptsURLForm(t *testing.T) {
	worker := &recordingWorker{}
	r := newTestRouter(t, worker, nil)

	resp := post(r, "/api/sites", `{"url":"gurt://tools.real/download"}`, "10.0.0.1:50000")
	require.Equal(t, gurt.StatusOK, resp.Status)
	assert.Equal(t, []string{"tools.real"}, worker.enqueued())
}

func TestAPISitesRejectsInvalidDomains(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	for _, body := range []string{
		`{"domain":""}`,
		`{"domain":"has space.real"}`,
		`{"domain":"under_score.real"}`,
		`{"url":"https://clearnet.example/"}`,
		`not json`,
	} {
		resp := post(r, "/api/sites", body, "10.0.0.1:50000")
		assert.Equal(t, gurt.StatusBadRequest, resp.Status, "body %s", body)
	}
}

func TestAPISitesRateLimitPerAddress(t *testing.T) {
	r := newTestRouter(t, &recordingWorker{}, nil)

	for i := 0; i < 5; i++ {
		resp := post(r, "/api/sites", `{"domain":"a.real"}`, "10.0.0.1:50000")
		require.Equal(t, gurt.StatusOK, resp.Status, "request %d", i+1)
	}
	resp := post(r, "/api/sites", `{"domain":"a.real"}`, "10.0.0.1:50000")
	assert.Equal(t, gurt.StatusTooManyRequests, resp.Status)

	// A different address still has budget.
	resp = post(r, "/api/sites", `{"domain":"a.real"}`, "10.0.0.2:50000")
	assert.Equal(t, gurt.StatusOK, resp.Status)
}

func TestAPISitesForwardedForTakesPrecedence(t *testing.T) {
	r := newTestRouter(t, &recordingWorker{}, nil)

	var headers gurt.Headers
	headers.Add("x-forwarded-for", "192.168.1.9, 10.0.0.1")
	req := &gurt.Request{Method: "POST", Path: "/api/sites",
		Headers: headers, Body: []byte(`{"domain":"a.real"}`)}

	for i := 0; i < 5; i++ {
		resp := r.Handle(context.Background(), req, "10.0.0.1:50000")
		require.Equal(t, gurt.StatusOK, resp.Status)
	}
	resp := r.Handle(context.Background(), req, "10.0.0.99:50000")
	assert.Equal(t, gurt.StatusTooManyRequests, resp.Status,
		"limit keys on the forwarded address, not the peer")
}

func TestServeIndexFallback(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	resp := get(r, "/")
	require.Equal(t, gurt.StatusOK, resp.Status)
	ct, ok := resp.Headers.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, "text/html", ct)
	assert.Contains(t, string(resp.Body), "GURT Search")
}

func TestServeSearchRendersAndEscapes(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	resp := get(r, "/search?q=%3Cscript%3Erust")
	require.Equal(t, gurt.StatusOK, resp.Status)
	body := string(resp.Body)
	assert.NotContains(t, body, "<script>rust")
	assert.Contains(t, body, "&lt;script&gt;rust")
}

func TestServeAssetRejectsTraversal(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	assert.Equal(t, gurt.StatusBadRequest, get(r, "/assets/../secret").Status)
	assert.Equal(t, gurt.StatusBadRequest, get(r, "/assets/").Status)
}

func TestServeAssetRefusesOversizedFiles(t *testing.T) {
	uiDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(uiDir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(uiDir, "assets", "huge.bin"), make([]byte, maxAssetBytes+1), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(uiDir, "assets", "small.css"), []byte("body{}"), 0o644))

	r := newTestRouter(t, nil, nil)
	r.uiDir = uiDir

	assert.Equal(t, gurt.StatusTooLarge, get(r, "/assets/huge.bin").Status)

	resp := get(r, "/assets/small.css")
	assert.Equal(t, gurt.StatusOK, resp.Status)
	assert.Equal(t, []byte("body{}"), resp.Body)
}

func TestQueryParamDecoding(t *testing.T) {
	assert.Equal(t, "rust guide", queryParam("q=rust%20guide", "q"))
	assert.Equal(t, "a+b", queryParam("q=a+b", "q"), "plus stays literal")
	assert.Equal(t, "", queryParam("other=x", "q"))
}

func TestValidDomain(t *testing.T) {
	assert.True(t, validDomain("docs.real"))
	assert.True(t, validDomain("a-1.b"))
	assert.False(t, validDomain(""))
	assert.False(t, validDomain("UPPER.real"))
	assert.False(t, validDomain(string(make([]byte, 256))))
}
