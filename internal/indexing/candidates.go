package indexing

import (
	"sort"
	"strings"

	"github.com/gurtlabs/gurtd/internal/crawler"
)

// maxCandidates caps how many URLs one domain contributes per crawl.
const maxCandidates = 16

// NormalizeCandidate turns a sitemap entry into an absolute overlay
// URL for the given domain. Absolute overlay URLs pass through
// verbatim, path-absolute entries get the domain prefixed, and bare
// entries are slash-joined onto it.
func NormalizeCandidate(domain, entry string) string {
	entry = strings.TrimSpace(entry)
	switch {
	case entry == "":
		return ""
	case strings.HasPrefix(entry, "gurt://"):
		return entry
	case strings.HasPrefix(entry, "/"):
		return "gurt://" + domain + entry
	default:
		return "gurt://" + domain + "/" + entry
	}
}

// BuildCandidates composes the crawl list for a domain: the root page
// plus the normalized sitemap entries, sorted, deduplicated, capped,
// and finally reordered so sitemap members come first.
func BuildCandidates(domain string, sitemapEntries []string) []string {
	normalized := make([]string, 0, len(sitemapEntries))
	for _, e := range sitemapEntries {
		if u := NormalizeCandidate(domain, e); u != "" {
			normalized = append(normalized, u)
		}
	}

	all := append([]string{"gurt://" + domain + "/"}, normalized...)
	sort.Strings(all)

	deduped := all[:0]
	var prev string
	for _, u := range all {
		if u == prev {
			continue
		}
		deduped = append(deduped, u)
		prev = u
	}
	if len(deduped) > maxCandidates {
		deduped = deduped[:maxCandidates]
	}
	return crawler.PrioritizeCandidates(deduped, normalized)
}

// candidatePath extracts the path component used for robots checks.
func candidatePath(rawURL string) string {
	rest := strings.TrimPrefix(rawURL, "gurt://")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return "/"
}
