package parser

import (
	"strings"
	"testing"
)

func TestParseAbsoluteURI(t *testing.T) {
	raw := []byte("GET http://example.com:8080/index.html HTTP/1.1\r\nHost: example.com:8080\r\nAccept: */*\r\n\r\n")

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("method = %q", req.Method)
	}
	if req.Host != "example.com" || req.Port != "8080" {
		t.Errorf("host/port = %q/%q", req.Host, req.Port)
	}
	if req.Path != "/index.html" {
		t.Errorf("path = %q", req.Path)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("version = %q", req.Version)
	}
}

func TestParseAbsoluteURIWithoutPath(t *testing.T) {
	req, err := Parse([]byte("GET http://example.com HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Path != "/" {
		t.Errorf("path = %q, want /", req.Path)
	}
	if req.Port != "" {
		t.Errorf("port = %q, want empty", req.Port)
	}
}

func TestParseOriginFormUsesHostHeader(t *testing.T) {
	req, err := Parse([]byte("GET /about HTTP/1.1\r\nHost: example.org:3128\r\n\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.Host != "example.org" || req.Port != "3128" {
		t.Errorf("host/port = %q/%q", req.Host, req.Port)
	}
	if req.Path != "/about" {
		t.Errorf("path = %q", req.Path)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte("GET\r\n\r\n"),
		[]byte("GET /\r\n\r\n"),
		[]byte("GET / HTTP/1.1 extra\r\n\r\n"),
		[]byte("GET / HTTP/1.1\r\nno-colon-here\r\n\r\n"),
	}
	for _, raw := range cases {
		if _, err := Parse(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestHeadersPreserveOrder(t *testing.T) {
	raw := []byte("GET / HTTP/1.1\r\nHost: h\r\nB-Second: 2\r\nA-First: 1\r\n\r\n")
	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var names []string
	for _, h := range req.Headers {
		names = append(names, h.Name)
	}
	want := "Host,B-Second,A-First"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("header order = %s, want %s", got, want)
	}
}

func TestUnparseHeadersStripsHopByHop(t *testing.T) {
	req, err := Parse([]byte("GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Connection: close\r\n" +
		"Proxy-Authorization: secret\r\n" +
		"Accept: text/html\r\n" +
		"X-Custom: yes\r\n\r\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	out := string(UnparseHeaders(req.Headers))
	for _, banned := range []string{"Host:", "Connection:", "Proxy-Authorization:"} {
		if strings.Contains(out, banned) {
			t.Errorf("output still contains %s:\n%s", banned, out)
		}
	}
	if want := "Accept: text/html\r\nX-Custom: yes\r\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}
