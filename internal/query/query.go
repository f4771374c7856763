// Package query parses user search input into free-text terms and the
// recognized field filters.
package query

import "strings"

// Parsed is a tokenized query: ordered free-text terms plus the
// site/filetype filters, normalized to lowercase with surrounding
// quotes stripped. Empty filter values are ignored and the last
// occurrence of a filter wins.
type Parsed struct {
	Terms    []string
	Site     string
	Filetype string
}

// keySeparator joins key components; it cannot occur in terms because
// they are produced by whitespace splitting.
const keySeparator = "\x1f"

// Parse splits input on whitespace and pulls out site:/filetype:
// filters. Unknown key:value tokens stay free-text terms unchanged.
func Parse(input string) Parsed {
	var p Parsed
	for _, token := range strings.Fields(input) {
		key, value, ok := strings.Cut(token, ":")
		if ok {
			switch strings.ToLower(key) {
			case "site":
				if v := normalizeFilter(value); v != "" {
					p.Site = v
				}
				continue
			case "filetype":
				if v := normalizeFilter(value); v != "" {
					p.Filetype = v
				}
				continue
			}
		}
		p.Terms = append(p.Terms, token)
	}
	return p
}

func normalizeFilter(v string) string {
	v = strings.Trim(v, `"'`)
	return strings.ToLower(v)
}

// NormalizeKey renders the canonical cache key: lowercased terms in
// order, then the filters that are set, joined by the separator.
func (p Parsed) NormalizeKey() string {
	parts := make([]string, 0, len(p.Terms)+2)
	for _, term := range p.Terms {
		parts = append(parts, strings.ToLower(term))
	}
	if p.Site != "" {
		parts = append(parts, "site="+p.Site)
	}
	if p.Filetype != "" {
		parts = append(parts, "filetype="+p.Filetype)
	}
	return strings.Join(parts, keySeparator)
}

// IsEmpty reports whether the query has neither terms nor filters.
func (p Parsed) IsEmpty() bool {
	return len(p.Terms) == 0 && p.Site == "" && p.Filetype == ""
}
