package router

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/gurtlabs/gurtd/internal/gurt"
	"github.com/gurtlabs/gurtd/internal/query"
)

// Inline fallbacks keep the UI usable when no ui directory is
// configured or a file is missing.
const (
	fallbackIndex = `<!DOCTYPE html>
<html><head><title>GURT Search</title></head>
<body>
<h1>GURT Search</h1>
<form action="/search" method="get">
  <input type="text" name="q" placeholder="search the overlay">
  <button type="submit">Search</button>
</form>
<p><a href="/domains">Submit a site</a></p>
</body></html>`

	fallbackDomains = `<!DOCTYPE html>
<html><head><title>Submit a Site</title></head>
<body>
<h1>Submit a Site</h1>
<p>POST a JSON body {"domain":"example.real"} to /api/sites.</p>
<p><a href="/">Back to search</a></p>
</body></html>`
)

// servePage returns the named file from the ui directory, or the
// fallback.
func (r *Router) servePage(name, fallback string) *gurt.Response {
	if r.uiDir != "" {
		if data, err := os.ReadFile(filepath.Join(r.uiDir, name)); err == nil {
			return htmlResponse(string(data))
		}
	}
	return htmlResponse(fallback)
}

func (r *Router) serveIndex() *gurt.Response {
	return r.servePage("index.html", fallbackIndex)
}

func (r *Router) serveDomains() *gurt.Response {
	page := r.servePage("domains.html", fallbackDomains)
	// The fallback shows how many sites arrived this run.
	if r.submitted.Len() > 0 && strings.Contains(string(page.Body), "</body>") {
		note := fmt.Sprintf("<p>%d site(s) submitted since start.</p>", r.submitted.Len())
		page.Body = []byte(strings.Replace(string(page.Body), "</body>", note+"</body>", 1))
	}
	return page
}

// serveSearch renders results server-side when a query is present,
// otherwise serves the search template.
func (r *Router) serveSearch(rawQuery string) *gurt.Response {
	q := queryParam(rawQuery, "q")
	if q == "" {
		return r.servePage("search.html", fallbackIndex)
	}

	results := r.runSearch(query.Parse(q))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>")
	b.WriteString(html.EscapeString(q))
	b.WriteString(" - GURT Search</title></head>\n<body>\n<h1>Results for ")
	b.WriteString(html.EscapeString(q))
	b.WriteString("</h1>\n")
	if len(results) == 0 {
		b.WriteString("<p>No results.</p>\n")
	} else {
		b.WriteString("<ol>\n")
		for _, res := range results {
			fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a> <small>%.4f</small></li>\n",
				html.EscapeString(res.URL), html.EscapeString(res.Title), res.Score)
		}
		b.WriteString("</ol>\n")
	}
	b.WriteString("<p><a href=\"/\">New search</a></p>\n</body></html>")
	return htmlResponse(b.String())
}

// maxAssetBytes leaves room for the response head inside the message
// ceiling.
const maxAssetBytes = gurt.MaxMessageSize - 4096

// serveAsset returns a file below <ui>/assets. Path traversal is
// rejected before touching the filesystem, and files too large to fit
// in one frame are refused.
func (r *Router) serveAsset(name string) *gurt.Response {
	if name == "" || strings.Contains(name, "..") {
		return errorResponse(gurt.StatusBadRequest, "invalid asset path")
	}
	if r.uiDir == "" {
		return errorResponse(gurt.StatusBadRequest, "no assets configured")
	}
	path := filepath.Join(r.uiDir, "assets", name)
	info, err := os.Stat(path)
	if err != nil {
		return errorResponse(gurt.StatusBadRequest, "asset not found")
	}
	if info.Size() > maxAssetBytes {
		return errorResponse(gurt.StatusTooLarge, "asset too large")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errorResponse(gurt.StatusBadRequest, "asset not found")
	}

	var headers gurt.Headers
	headers.Add("content-type", assetContentType(name))
	return &gurt.Response{Status: gurt.StatusOK, Headers: headers, Body: data}
}

func assetContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".lua":
		return "text/lua"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
