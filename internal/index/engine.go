// Package index wraps the full-text engine behind a small capability
// set so callers never depend on a concrete backend: a persistent
// store when the configured path is usable, an in-memory variant
// otherwise, and a no-op last resort so queries fail soft.
package index

import (
	"strings"
	"unicode"
)

// Doc is one indexed document. Fields mirror the index schema exactly.
type Doc struct {
	URL        string
	Domain     string
	Title      string
	Content    string
	FetchTime  int64 // seconds since the Unix epoch
	Language   string
	RenderMode string
}

// Hit is one engine result with its BM25-derived score.
type Hit struct {
	Title     string
	URL       string
	Domain    string
	FetchTime int64
	Score     float64
}

// Engine is the index capability set. Add buffers a document, Commit
// makes buffered additions durable, Refresh exposes new segments to
// searchers. All methods are safe for concurrent callers.
type Engine interface {
	Name() string
	Add(doc Doc) error
	Commit() error
	Refresh() error
	Search(terms []string, page, size int) ([]Hit, error)
	DocCount() (uint64, error)
	Close() error
}

// stopwords is the fixed English stopword set used by the analyzer and
// the query tokenizer.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"to": {}, "for": {}, "on": {}, "with": {}, "is": {}, "it": {}, "this": {},
	"that": {}, "by": {}, "be": {}, "as": {}, "at": {}, "from": {},
}

// Tokenize lowercases input, splits on non-alphanumeric runs, and
// drops stopwords. An all-stopword input yields nil.
func Tokenize(input string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if _, stop := stopwords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}
	for _, r := range strings.ToLower(input) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// Stopwords returns the stopword list; the bleve analyzer is built
// from the same set.
func Stopwords() []interface{} {
	out := make([]interface{}, 0, len(stopwords))
	for w := range stopwords {
		out = append(out, w)
	}
	return out
}
