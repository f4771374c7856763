package index

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/analysis/tokenmap"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const textAnalyzer = "gurt_text"

// buildMapping assembles the seven-field schema: exact url/domain,
// analyzed title/content with positions, numeric fetch_time, and
// stored-only language/render_mode.
func buildMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()

	if err := m.AddCustomTokenMap("gurt_stopwords", map[string]interface{}{
		"type":   tokenmap.Name,
		"tokens": Stopwords(),
	}); err != nil {
		return nil, fmt.Errorf("stopword token map: %w", err)
	}
	if err := m.AddCustomTokenFilter("gurt_stop", map[string]interface{}{
		"type":           stop.Name,
		"stop_token_map": "gurt_stopwords",
	}); err != nil {
		return nil, fmt.Errorf("stop filter: %w", err)
	}
	if err := m.AddCustomAnalyzer(textAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []interface{}{lowercase.Name, "gurt_stop"},
	}); err != nil {
		return nil, fmt.Errorf("text analyzer: %w", err)
	}

	exact := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		return fm
	}
	analyzed := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = textAnalyzer
		fm.Store = true
		fm.IncludeTermVectors = true
		return fm
	}
	storedOnly := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Index = false
		fm.Store = true
		return fm
	}

	fetchTime := bleve.NewNumericFieldMapping()
	fetchTime.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("url", exact())
	doc.AddFieldMappingsAt("domain", exact())
	doc.AddFieldMappingsAt("title", analyzed())
	doc.AddFieldMappingsAt("content", analyzed())
	doc.AddFieldMappingsAt("fetch_time", fetchTime)
	doc.AddFieldMappingsAt("language", storedOnly())
	doc.AddFieldMappingsAt("render_mode", storedOnly())

	m.DefaultMapping = doc
	m.DefaultAnalyzer = textAnalyzer
	return m, nil
}

// BleveEngine is the real index. Additions buffer into a batch under a
// mutex; Commit executes the batch. Refresh is a no-op because bleve
// exposes committed segments to searchers immediately.
type BleveEngine struct {
	name string
	idx  bleve.Index

	mu    sync.Mutex
	batch *bleve.Batch
	seq   uint64
}

func newBleveEngine(name string, idx bleve.Index) *BleveEngine {
	return &BleveEngine{name: name, idx: idx, batch: idx.NewBatch()}
}

func (b *BleveEngine) Name() string { return b.name }

// Add buffers the document. Documents are appended without
// deduplication, so the internal id carries a sequence number.
func (b *BleveEngine) Add(doc Doc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := fmt.Sprintf("%s#%d", doc.URL, b.seq)
	return b.batch.Index(id, map[string]interface{}{
		"url":         doc.URL,
		"domain":      doc.Domain,
		"title":       doc.Title,
		"content":     doc.Content,
		"fetch_time":  doc.FetchTime,
		"language":    doc.Language,
		"render_mode": doc.RenderMode,
	})
}

func (b *BleveEngine) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.batch.Size() == 0 {
		return nil
	}
	if err := b.idx.Batch(b.batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	b.batch = b.idx.NewBatch()
	return nil
}

func (b *BleveEngine) Refresh() error { return nil }

// Search runs a boolean SHOULD query of every token against title and
// content, top-K by score with a page offset.
func (b *BleveEngine) Search(terms []string, page, size int) ([]Hit, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	tokens := Tokenize(strings.Join(terms, " "))
	if len(tokens) == 0 {
		return nil, nil
	}

	bq := bleve.NewBooleanQuery()
	for _, tok := range tokens {
		for _, field := range []string{"title", "content"} {
			tq := query.NewTermQuery(tok)
			tq.SetField(field)
			bq.AddShould(tq)
		}
	}

	req := bleve.NewSearchRequestOptions(bq, size, (page-1)*size, false)
	req.Fields = []string{"url", "domain", "title", "fetch_time"}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		if v, ok := h.Fields["url"].(string); ok {
			hit.URL = v
		}
		if v, ok := h.Fields["domain"].(string); ok {
			hit.Domain = v
		}
		if v, ok := h.Fields["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields["fetch_time"].(float64); ok {
			hit.FetchTime = int64(v)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (b *BleveEngine) DocCount() (uint64, error) {
	return b.idx.DocCount()
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}
