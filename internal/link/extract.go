// Package link builds the overlay link graph: anchor extraction from
// fetched pages, PageRank over domains, and the authority snapshot
// consumed by the ranking layer.
package link

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks pulls absolute overlay links out of an HTML document.
// Relative references and links to other schemes are skipped; the
// crawler only follows what it can fetch over the overlay.
func ExtractLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "gurt://") {
			links = append(links, href)
		}
	})
	return links, nil
}

// LinkDomain reduces an overlay URL to its lowercased host, the node
// identity in the link graph. Port and path are dropped.
func LinkDomain(rawURL string) string {
	rest := strings.TrimPrefix(rawURL, "gurt://")
	if rest == rawURL {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}
