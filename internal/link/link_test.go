package link

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinksKeepsOverlayAbsoluteOnly(t *testing.T) {
	html := `<html><body>
		<a href="gurt://docs.real/guide">guide</a>
		<a href="/relative/path">relative</a>
		<a href="https://clearnet.example/">clearnet</a>
		<a href=" gurt://tools.real/ ">padded</a>
		<a>no href</a>
		<p>gurt://not-a-link.real/ in text</p>
	</body></html>`

	links, err := ExtractLinks(html)
	require.NoError(t, err)
	assert.Equal(t, []string{"gurt://docs.real/guide", "gurt://tools.real/"}, links)
}

func TestExtractLinksEmptyDocument(t *testing.T) {
	links, err := ExtractLinks("")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLinkDomain(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"gurt://Docs.Real/guide?x=1", "docs.real"},
		{"gurt://tools.real:4878/", "tools.real"},
		{"gurt://bare.real", "bare.real"},
		{"https://other.example/", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LinkDomain(tc.raw), "input %q", tc.raw)
	}
}

func TestPageRankSumsToOne(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.real", "b.real")
	g.AddEdge("b.real", "c.real")
	g.AddEdge("c.real", "a.real")
	g.AddNode("island.real")

	ranks := g.PageRank()
	require.Len(t, ranks, 4)
	sum := 0.0
	for _, r := range ranks {
		sum += r
	}
	assert.InDelta(t, 1.0, sum, 1e-9, "dangling mass must be redistributed")
}

func TestPageRankFavorsLinkedDomains(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.real", "hub.real")
	g.AddEdge("b.real", "hub.real")
	g.AddEdge("c.real", "hub.real")
	g.AddEdge("hub.real", "a.real")

	ranks := g.PageRank()
	assert.Greater(t, ranks["hub.real"], ranks["b.real"])
	assert.Greater(t, ranks["hub.real"], ranks["c.real"])
}

func TestGraphIgnoresSelfAndEmptyEdges(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.real", "a.real")
	g.AddEdge("", "b.real")
	g.AddEdge("a.real", "")
	assert.Equal(t, 0, g.Len())

	// Duplicate edges count once.
	g.AddEdge("a.real", "b.real")
	g.AddEdge("a.real", "b.real")
	ranks := g.PageRank()
	assert.Len(t, ranks, 2)
}

func TestPageRankEmptyGraph(t *testing.T) {
	assert.Empty(t, NewGraph().PageRank())
}

func TestAuthoritySnapshotRoundTrip(t *testing.T) {
	store := NewAuthorityStore()
	store.Replace(map[string]float64{
		"docs.real":  0.4217351,
		"tools.real": 0.1234567891,
	})

	path := filepath.Join(t.TempDir(), "authority.json")
	require.NoError(t, store.SaveSnapshot(path))

	loaded := NewAuthorityStore()
	require.NoError(t, loaded.LoadSnapshot(path))
	assert.Equal(t, 2, loaded.Len())
	assert.InDelta(t, 0.421735, loaded.Authority("docs.real"), 1e-6)
	assert.InDelta(t, 0.123457, loaded.Authority("tools.real"), 1e-6)
	assert.Equal(t, 0.0, loaded.Authority("unknown.real"))
}

func TestAuthorityURLLookupWithDomainFallback(t *testing.T) {
	store := NewAuthorityStore()
	store.Replace(map[string]float64{
		"docs.real":              0.4,
		"gurt://docs.real/guide": 0.9,
	})

	assert.Equal(t, 0.9, store.Authority("gurt://docs.real/guide"))
	assert.Equal(t, 0.4, store.Authority("gurt://docs.real/other"))
	assert.Equal(t, 0.4, store.Authority("docs.real"))
	assert.Equal(t, 0.0, store.Authority("gurt://unknown.real/"))
	assert.Equal(t, 0.0, store.Authority("https://docs.real/guide"))
}

func TestSnapshotsAreDeterministic(t *testing.T) {
	store := NewAuthorityStore()
	store.Replace(map[string]float64{"b.real": 0.25, "a.real": 0.75, "c.real": 0.5})

	first, err := store.ToJSON()
	require.NoError(t, err)
	second, err := store.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadSnapshotMissingFileIsEmpty(t *testing.T) {
	store := NewAuthorityStore()
	require.NoError(t, store.LoadSnapshot(filepath.Join(t.TempDir(), "absent.json")))
	assert.Equal(t, 0, store.Len())
}

func TestCombineAuthority(t *testing.T) {
	assert.InDelta(t, 0.7, CombineAuthority(1.0, 0.0, 0.7), 1e-9)
	assert.InDelta(t, 0.3, CombineAuthority(0.0, 1.0, 0.7), 1e-9)
	assert.False(t, math.IsNaN(CombineAuthority(0, 0, 0)))
}
