package crawler

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractSitemapLocs(t *testing.T) {
	xml := `<?xml version="1.0"?>
<urlset>
  <url><loc> gurt://a.real/ </loc></url>
  <url><loc>gurt://a.real/docs</loc></url>
  <url><loc></loc></url>
</urlset>`
	got := ExtractSitemapLocs(xml)
	want := []string{"gurt://a.real/", "gurt://a.real/docs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractSitemapLocsRoundTrip(t *testing.T) {
	urls := []string{"gurt://a.real/", "gurt://a.real/x", "/relative"}
	var b strings.Builder
	for _, u := range urls {
		b.WriteString("<loc>")
		b.WriteString(u)
		b.WriteString("</loc>")
	}
	got := ExtractSitemapLocs(b.String())
	if !reflect.DeepEqual(got, urls) {
		t.Errorf("round trip lost entries: %v vs %v", got, urls)
	}
}

func TestExtractSitemapLocsUnclosed(t *testing.T) {
	got := ExtractSitemapLocs("<loc>gurt://a.real/ok</loc><loc>dangling")
	if !reflect.DeepEqual(got, []string{"gurt://a.real/ok"}) {
		t.Errorf("got %v", got)
	}
}

func TestPrioritizeCandidates(t *testing.T) {
	candidates := []string{"u1", "u2", "u3", "u4"}
	sitemap := []string{"u3", "u1"}

	got := PrioritizeCandidates(candidates, sitemap)
	want := []string{"u1", "u3", "u2", "u4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPrioritizeCandidatesNoSitemap(t *testing.T) {
	candidates := []string{"u1", "u2"}
	got := PrioritizeCandidates(candidates, nil)
	if !reflect.DeepEqual(got, candidates) {
		t.Errorf("order must be stable without a sitemap: %v", got)
	}
}
