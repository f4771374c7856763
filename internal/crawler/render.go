package crawler

import (
	"strings"
	"sync"
	"time"
)

// RenderMode tags how a document's content was produced.
type RenderMode string

const (
	ModeStatic   RenderMode = "static"
	ModeRendered RenderMode = "rendered"
)

// DynamicReason records why a document was classified as dynamic.
type DynamicReason int

const (
	ReasonLuaScriptTag DynamicReason = iota
	ReasonNetworkFetch
)

func (r DynamicReason) String() string {
	switch r {
	case ReasonLuaScriptTag:
		return "LuaScriptTag"
	case ReasonNetworkFetch:
		return "NetworkFetch"
	}
	return "Unknown"
}

// RecrawlItem is a URL whose render timed out, queued for a later pass.
type RecrawlItem struct {
	URL    string
	Reason DynamicReason
}

// RecrawlQueue is a mutex-guarded FIFO of timed-out renders.
type RecrawlQueue struct {
	mu    sync.Mutex
	items []RecrawlItem
}

func (q *RecrawlQueue) Push(item RecrawlItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Drain removes and returns all queued items in FIFO order.
func (q *RecrawlQueue) Drain() []RecrawlItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *RecrawlQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RenderResult is the output of one render pass.
type RenderResult struct {
	Content  string
	Mode     RenderMode
	TimedOut bool
}

// renderedMarker is appended to successfully rendered documents.
const renderedMarker = "\n<!-- rendered -->"

// classifyWindow bounds how far past a <script tag the lua token is
// looked for.
const classifyWindow = 256

// ClassifyDynamic reports whether content needs rendering and why. A
// document is dynamic when a <script tag has the token "lua" nearby,
// or when it calls network.fetch( anywhere.
func ClassifyDynamic(content string) (bool, DynamicReason) {
	lower := strings.ToLower(content)
	rest := lower
	for {
		i := strings.Index(rest, "<script")
		if i < 0 {
			break
		}
		end := i + classifyWindow
		if end > len(rest) {
			end = len(rest)
		}
		if strings.Contains(rest[i:end], "lua") {
			return true, ReasonLuaScriptTag
		}
		rest = rest[i+len("<script"):]
	}
	if strings.Contains(lower, "network.fetch(") {
		return true, ReasonNetworkFetch
	}
	return false, 0
}

// Renderer applies the bounded render-once transformation. Cost
// simulates the work a script pass would take; when it exceeds the
// budget the original content passes through and the URL is queued for
// re-crawl.
type Renderer struct {
	Budget time.Duration
	Cost   time.Duration
	Queue  *RecrawlQueue
}

// Render processes one document. Static documents pass through
// untouched; dynamic ones either get their script blocks stripped and
// the marker appended, or time out.
func (r *Renderer) Render(url, content string) RenderResult {
	dynamic, reason := ClassifyDynamic(content)
	if !dynamic {
		return RenderResult{Content: content, Mode: ModeStatic}
	}

	// Simulate the render cost, but never sleep past the budget.
	wait := r.Cost
	if wait > r.Budget {
		wait = r.Budget
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	if r.Cost > r.Budget {
		if r.Queue != nil {
			r.Queue.Push(RecrawlItem{URL: url, Reason: reason})
		}
		return RenderResult{Content: content, Mode: ModeStatic, TimedOut: true}
	}

	return RenderResult{Content: StripScripts(content) + renderedMarker, Mode: ModeRendered}
}

// StripScripts removes every <script>…</script> block with a naive
// linear scan. An unclosed tag drops the remainder of the document;
// script tags inside strings are not special-cased.
func StripScripts(content string) string {
	var b strings.Builder
	lower := strings.ToLower(content)
	pos := 0
	for {
		i := strings.Index(lower[pos:], "<script")
		if i < 0 {
			b.WriteString(content[pos:])
			break
		}
		b.WriteString(content[pos : pos+i])
		close := strings.Index(lower[pos+i:], "</script>")
		if close < 0 {
			break
		}
		pos = pos + i + close + len("</script>")
	}
	return b.String()
}
