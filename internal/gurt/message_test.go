package gurt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadBlockSplitDelimiter(t *testing.T) {
	// Delimiter split across reads must still be found.
	r := io.MultiReader(
		strings.NewReader("GET / GURT/1.0.0\r\nhost: a\r"),
		strings.NewReader("\n\r\nEXTRA"),
	)
	block, rest, err := ReadBlock(r, MaxMessageSize)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.HasSuffix(block, []byte("\r\n\r\n")) {
		t.Errorf("block missing terminator: %q", block)
	}
	if string(rest) != "EXTRA" {
		t.Errorf("rest = %q, want EXTRA", rest)
	}
}

func TestReadBlockTooLarge(t *testing.T) {
	r := &endlessHeaders{}
	_, _, err := ReadBlock(r, 64*1024)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

// endlessHeaders yields header bytes forever without a terminator.
type endlessHeaders struct{}

func (e *endlessHeaders) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}

func TestReadBlockMissingTerminator(t *testing.T) {
	_, _, err := ReadBlock(strings.NewReader("GET / GURT/1.0.0\r\n"), MaxMessageSize)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseRequestHead(t *testing.T) {
	block := []byte("POST /api/sites GURT/1.0.0\r\nHost: example.real\r\nX-Dup: a\r\nx-dup: b\r\n\r\n")
	method, path, headers, err := ParseRequestHead(block)
	if err != nil {
		t.Fatalf("ParseRequestHead: %v", err)
	}
	if method != "POST" || path != "/api/sites" {
		t.Errorf("got %s %s", method, path)
	}
	if v, ok := headers.Get("HOST"); !ok || v != "example.real" {
		t.Errorf("host lookup = %q, %v", v, ok)
	}
	// Order and duplicates preserved, names lowercased.
	if headers[1].Name != "x-dup" || headers[1].Value != "a" {
		t.Errorf("first duplicate = %+v", headers[1])
	}
	if headers[2].Value != "b" {
		t.Errorf("second duplicate = %+v", headers[2])
	}
}

func TestParseRequestHeadMalformed(t *testing.T) {
	cases := []struct {
		name  string
		block string
	}{
		{"wrong version", "GET / HTTP/1.1\r\n\r\n"},
		{"two fields", "GET /\r\n\r\n"},
		{"empty method", " / GURT/1.0.0\r\n\r\n"},
		{"header without colon", "GET / GURT/1.0.0\r\nbogus\r\n\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := ParseRequestHead([]byte(tc.block))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestReadRequestWithBody(t *testing.T) {
	raw := "POST /resolve-full GURT/1.0.0\r\ncontent-length: 19\r\n\r\n{\"domain\":\"a.real\"}"
	req, err := ReadRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if string(req.Body) != `{"domain":"a.real"}` {
		t.Errorf("body = %q", req.Body)
	}
}

func TestContentLengthCeiling(t *testing.T) {
	var h Headers
	h.Add("content-length", "10485761")
	_, err := ContentLength(h, 0)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestResponseEncodeDefaults(t *testing.T) {
	resp := &Response{Status: StatusOK, Body: []byte(`{"status":"ready"}`)}
	out := string(resp.Encode())

	if !strings.HasPrefix(out, "GURT/1.0.0 200 OK\r\n") {
		t.Errorf("status line wrong: %q", out)
	}
	for _, want := range []string{
		"server: GURT/1.0.0\r\n",
		"content-type: application/json\r\n",
		"content-length: 18\r\n",
		"date: ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if !strings.HasSuffix(out, `{"status":"ready"}`) {
		t.Errorf("body not last: %q", out)
	}
}

func TestResponseEncodeExplicitContentType(t *testing.T) {
	resp := &Response{Status: StatusOK, Body: []byte("<html></html>")}
	resp.Headers.Add("content-type", "text/html")
	out := string(resp.Encode())
	if strings.Contains(out, "application/json") {
		t.Errorf("default content-type should not override explicit one: %q", out)
	}
	if !strings.Contains(out, "content-type: text/html\r\n") {
		t.Errorf("explicit content-type missing: %q", out)
	}
}

func TestStatusReasons(t *testing.T) {
	cases := map[Status]string{
		StatusOK:              "OK",
		StatusBadRequest:      "BAD_REQUEST",
		StatusTooLarge:        "TOO_LARGE",
		StatusTooManyRequests: "TOO_MANY_REQUESTS",
		StatusInternalError:   "INTERNAL_SERVER_ERROR",
	}
	for status, reason := range cases {
		if status.Reason() != reason {
			t.Errorf("Reason(%d) = %q, want %q", status, status.Reason(), reason)
		}
	}
	if Status(599).Reason() != "INTERNAL_SERVER_ERROR" {
		t.Errorf("unknown status should use the internal error token")
	}
}

func TestRequestEncodeRoundTrip(t *testing.T) {
	req := &Request{Method: "GET", Path: "/search?q=rust", Body: nil}
	req.Headers.Add("host", "search.real")
	parsed, err := ReadRequest(bytes.NewReader(req.Encode()))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if parsed.Method != "GET" || parsed.Path != "/search?q=rust" {
		t.Errorf("round trip lost start line: %+v", parsed)
	}
}
