package gurt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gurtlabs/gurtd/internal/pool"
)

// Sentinel errors for framing failures. ErrTooLarge maps to 413 on the
// server path; everything else in this family maps to 400.
var (
	ErrTooLarge  = errors.New("gurt: message exceeds size ceiling")
	ErrMalformed = errors.New("gurt: malformed message")
)

const crlf = "\r\n"

var headerEnd = []byte("\r\n\r\n")

// Header is a single name/value pair. Names are stored lowercased;
// order and duplicates are preserved.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list with case-insensitive lookup.
type Headers []Header

// Get returns the first value for name (case-insensitive) and whether
// it was present.
func (h Headers) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, hdr := range h {
		if hdr.Name == name {
			return hdr.Value, true
		}
	}
	return "", false
}

// Add appends a header, lowercasing the name.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: strings.ToLower(name), Value: value})
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Request is one parsed overlay request. Immutable after parse.
type Request struct {
	Method  string
	Path    string // raw, query string preserved
	Headers Headers
	Body    []byte
}

// Response is one overlay response.
type Response struct {
	Status  Status
	Headers Headers
	Body    []byte
}

// chunkPool recycles the scratch buffers used by ReadBlock; every
// connection and every client fetch goes through here.
var chunkPool = pool.New(func() *[]byte {
	buf := make([]byte, 2048)
	return &buf
})

// ReadBlock reads from r until the first CRLFCRLF, returning the block
// (delimiter included) and any bytes read past it. The scan is
// incremental: each new chunk is only searched from three bytes before
// its start, so large header blocks are not rescanned quadratically.
// Exceeding limit returns ErrTooLarge.
func ReadBlock(r io.Reader, limit int) (block []byte, rest []byte, err error) {
	buf := make([]byte, 0, 512)
	chunkPtr := chunkPool.Get()
	chunk := *chunkPtr
	defer chunkPool.Put(chunkPtr)
	for {
		scanFrom := len(buf) - 3
		if scanFrom < 0 {
			scanFrom = 0
		}
		n, rerr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if i := bytes.Index(buf[scanFrom:], headerEnd); i >= 0 {
				end := scanFrom + i + len(headerEnd)
				if end > limit {
					return nil, nil, ErrTooLarge
				}
				return buf[:end], buf[end:], nil
			}
			if len(buf) > limit {
				return nil, nil, ErrTooLarge
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil, nil, fmt.Errorf("%w: missing header terminator", ErrMalformed)
			}
			return nil, nil, rerr
		}
	}
}

// parseHeaderLines parses the lines after a start line. Names are
// lowercased and values trimmed; a line with no colon is malformed.
func parseHeaderLines(lines []string) (Headers, error) {
	headers := make(Headers, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformed, line)
		}
		headers = append(headers, Header{
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Value: strings.TrimSpace(value),
		})
	}
	return headers, nil
}

// ParseRequestHead parses a request header block (terminator included
// or not) into method, path, and headers.
func ParseRequestHead(block []byte) (method, path string, headers Headers, err error) {
	text := strings.TrimSuffix(string(block), crlf+crlf)
	lines := strings.Split(text, crlf)
	if len(lines) == 0 {
		return "", "", nil, fmt.Errorf("%w: empty request", ErrMalformed)
	}
	parts := strings.Split(lines[0], " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", nil, fmt.Errorf("%w: start line %q", ErrMalformed, lines[0])
	}
	if parts[2] != Version {
		return "", "", nil, fmt.Errorf("%w: version %q", ErrMalformed, parts[2])
	}
	headers, err = parseHeaderLines(lines[1:])
	if err != nil {
		return "", "", nil, err
	}
	return parts[0], parts[1], headers, nil
}

// ParseResponseHead parses a response header block into status, reason,
// and headers.
func ParseResponseHead(block []byte) (status Status, reason string, headers Headers, err error) {
	text := strings.TrimSuffix(string(block), crlf+crlf)
	lines := strings.Split(text, crlf)
	if len(lines) == 0 {
		return 0, "", nil, fmt.Errorf("%w: empty response", ErrMalformed)
	}
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 || parts[0] != Version {
		return 0, "", nil, fmt.Errorf("%w: status line %q", ErrMalformed, lines[0])
	}
	code, cerr := strconv.Atoi(parts[1])
	if cerr != nil {
		return 0, "", nil, fmt.Errorf("%w: status code %q", ErrMalformed, parts[1])
	}
	if len(parts) == 3 {
		reason = parts[2]
	}
	headers, err = parseHeaderLines(lines[1:])
	if err != nil {
		return 0, "", nil, err
	}
	return Status(code), reason, headers, nil
}

// ContentLength returns the declared content-length, or 0 when absent.
// A declared length pushing the whole message past the ceiling returns
// ErrTooLarge; an unparseable value is malformed.
func ContentLength(headers Headers, headSize int) (int, error) {
	raw, ok := headers.Get("content-length")
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: content-length %q", ErrMalformed, raw)
	}
	if headSize+n > MaxMessageSize {
		return 0, ErrTooLarge
	}
	return n, nil
}

// ReadRequest reads one complete request from r, enforcing the message
// ceiling across header block and body together.
func ReadRequest(r io.Reader) (*Request, error) {
	block, rest, err := ReadBlock(r, MaxMessageSize)
	if err != nil {
		return nil, err
	}
	method, path, headers, err := ParseRequestHead(block)
	if err != nil {
		return nil, err
	}
	n, err := ContentLength(headers, len(block))
	if err != nil {
		return nil, err
	}
	body, err := readBody(r, rest, n)
	if err != nil {
		return nil, err
	}
	return &Request{Method: method, Path: path, Headers: headers, Body: body}, nil
}

// readBody assembles a body of exactly n bytes from the leftover bytes
// of the header read plus further reads.
func readBody(r io.Reader, rest []byte, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	body := make([]byte, 0, n)
	if len(rest) > n {
		rest = rest[:n]
	}
	body = append(body, rest...)
	if len(body) < n {
		tail := make([]byte, n-len(body))
		if _, err := io.ReadFull(r, tail); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		body = append(body, tail...)
	}
	return body, nil
}

// Encode serializes the request with a trailing content-length when a
// body is present and none was set explicitly.
func (req *Request) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.Path)
	b.WriteByte(' ')
	b.WriteString(Version)
	b.WriteString(crlf)
	for _, h := range req.Headers {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString(crlf)
	}
	if len(req.Body) > 0 && !req.Headers.Has("content-length") {
		b.WriteString("content-length: ")
		b.WriteString(strconv.Itoa(len(req.Body)))
		b.WriteString(crlf)
	}
	b.WriteString(crlf)
	b.Write(req.Body)
	return b.Bytes()
}

// Encode serializes the response. Every emitted response carries the
// server token and an RFC 1123 date; content-type defaults to JSON and
// content-length always matches the body.
func (resp *Response) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(Version)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(int(resp.Status)))
	b.WriteByte(' ')
	b.WriteString(resp.Status.Reason())
	b.WriteString(crlf)

	b.WriteString("server: ")
	b.WriteString(Version)
	b.WriteString(crlf)
	b.WriteString("date: ")
	b.WriteString(httpDate(time.Now()))
	b.WriteString(crlf)

	for _, h := range resp.Headers {
		switch h.Name {
		case "server", "date", "content-length":
			continue
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString(crlf)
	}
	if !resp.Headers.Has("content-type") {
		b.WriteString("content-type: application/json")
		b.WriteString(crlf)
	}
	b.WriteString("content-length: ")
	b.WriteString(strconv.Itoa(len(resp.Body)))
	b.WriteString(crlf)
	b.WriteString(crlf)
	b.Write(resp.Body)
	return b.Bytes()
}

// httpDate formats t as RFC 1123 in GMT, the form used by date headers.
func httpDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT"
}
