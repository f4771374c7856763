package indexing

import "strings"

// ExtractTitle pulls the first <title> element out of an HTML page,
// collapses internal whitespace, and falls back to the given default
// when the element is missing or empty.
func ExtractTitle(html, fallback string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return fallback
	}
	open := strings.IndexByte(lower[start:], '>')
	if open < 0 {
		return fallback
	}
	rest := html[start+open+1:]
	end := strings.Index(strings.ToLower(rest), "</title>")
	if end < 0 {
		return fallback
	}
	title := strings.Join(strings.Fields(rest[:end]), " ")
	if title == "" {
		return fallback
	}
	return title
}
