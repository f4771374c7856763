package crawler

import "strings"

// ExtractSitemapLocs pulls the trimmed text of every <loc>…</loc> pair
// out of sitemap XML. The scan is textual on purpose: overlay sitemaps
// are small and frequently hand-written, and a strict XML parser would
// reject half of them.
func ExtractSitemapLocs(xml string) []string {
	var locs []string
	rest := xml
	for {
		i := strings.Index(rest, "<loc>")
		if i < 0 {
			break
		}
		rest = rest[i+len("<loc>"):]
		j := strings.Index(rest, "</loc>")
		if j < 0 {
			break
		}
		if loc := strings.TrimSpace(rest[:j]); loc != "" {
			locs = append(locs, loc)
		}
		rest = rest[j+len("</loc>"):]
	}
	return locs
}

// PrioritizeCandidates orders candidates so that URLs present in the
// sitemap come first; both partitions keep their original order.
func PrioritizeCandidates(candidates, sitemapEntries []string) []string {
	inSitemap := make(map[string]struct{}, len(sitemapEntries))
	for _, e := range sitemapEntries {
		inSitemap[e] = struct{}{}
	}
	ordered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := inSitemap[c]; ok {
			ordered = append(ordered, c)
		}
	}
	for _, c := range candidates {
		if _, ok := inSitemap[c]; !ok {
			ordered = append(ordered, c)
		}
	}
	return ordered
}
