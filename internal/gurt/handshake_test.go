package gurt

import (
	"strings"
	"testing"
)

func TestValidateHandshake(t *testing.T) {
	ok := []byte("HANDSHAKE / GURT/1.0.0\r\nuser-agent: gurtd/0.1\r\n\r\n")
	if err := ValidateHandshake(ok); err != nil {
		t.Fatalf("valid handshake rejected: %v", err)
	}

	bad := []string{
		"GET / GURT/1.0.0\r\n\r\n",
		"HANDSHAKE / GURT/1.0\r\n\r\n",
		"HANDSHAKE /x GURT/1.0.0\r\n\r\n",
		"handshake / GURT/1.0.0\r\n\r\n",
	}
	for _, b := range bad {
		if err := ValidateHandshake([]byte(b)); err == nil {
			t.Errorf("accepted invalid handshake %q", b)
		}
	}
}

func TestEncodeHandshakeResponseHeaders(t *testing.T) {
	out := string(EncodeHandshakeResponse())
	if !strings.HasPrefix(out, "GURT/1.0.0 101 SWITCHING_PROTOCOLS\r\n") {
		t.Fatalf("status line: %q", out)
	}
	for _, want := range []string{
		"gurt-version: 1.0.0\r\n",
		"encryption: TLS/1.3\r\n",
		"alpn: GURT/1.0\r\n",
		"server: GURT/1.0.0\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Errorf("response not terminated: %q", out)
	}
}

func TestValidateHandshakeResponse(t *testing.T) {
	if err := ValidateHandshakeResponse(EncodeHandshakeResponse()); err != nil {
		t.Fatalf("own response rejected: %v", err)
	}
	if err := ValidateHandshakeResponse([]byte("GURT/1.0.0 200 OK\r\n\r\n")); err == nil {
		t.Error("non-101 response accepted")
	}
	if err := ValidateHandshakeResponse([]byte("HTTP/1.1 101 Switching Protocols\r\n\r\n")); err == nil {
		t.Error("wrong version accepted")
	}
}
