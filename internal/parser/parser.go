// Package parser turns the raw bytes of a client's request headers into a
// ParsedRequest. Its grammar is intentionally minimal; the proxy core does
// not depend on anything beyond the fields below.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
)

// ErrMalformed is returned for any request line or header block the parser
// cannot make sense of.
var ErrMalformed = errors.New("parser: malformed request")

// Header is one ordered header line, preserved verbatim (name as sent, not
// canonicalized) so ForwardRequest can re-serialize it unchanged.
type Header struct {
	Name  string
	Value string
}

// ParsedRequest is the external-collaborator contract's output: method,
// host, optional port, path, version, and the ordered header list. Anything
// after the blank line is not kept.
type ParsedRequest struct {
	Method  string
	Host    string
	Port    string // empty if not present in the request line or Host header
	Path    string
	Version string
	Headers []Header
}

// Parse reads one HTTP/1.1 request (request line + headers, terminated by
// the blank line) from buf. It does not consume or validate any body.
func Parse(buf []byte) (ParsedRequest, error) {
	reader := bufio.NewReader(bytes.NewReader(buf))

	requestLine, err := reader.ReadString('\n')
	if err != nil {
		return ParsedRequest{}, ErrMalformed
	}
	requestLine = strings.TrimRight(requestLine, "\r\n")

	fields := strings.Fields(requestLine)
	if len(fields) != 3 {
		return ParsedRequest{}, ErrMalformed
	}

	req := ParsedRequest{
		Method:  fields[0],
		Version: fields[2],
	}

	host, port, path := splitTarget(fields[1])
	req.Host, req.Port, req.Path = host, port, path

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF before the blank line means the header block was
			// truncated; the caller is responsible for having waited for
			// \r\n\r\n before ever calling Parse.
			break
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return ParsedRequest{}, ErrMalformed
		}
		h := Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
		req.Headers = append(req.Headers, h)
		if req.Host == "" && strings.EqualFold(h.Name, "Host") {
			host, port := splitHostPort(h.Value)
			req.Host = host
			if req.Port == "" {
				req.Port = port
			}
		}
	}

	return req, nil
}

// splitTarget pulls host/port/path out of a request-line target, which may
// be an absolute URI ("http://host:port/path") or an origin-form path
// ("/path", host supplied only via the Host header).
func splitTarget(target string) (host, port, path string) {
	rest := target
	if i := strings.Index(rest, "://"); i != -1 {
		rest = rest[i+3:]
		slash := strings.Index(rest, "/")
		var authority string
		if slash == -1 {
			authority, path = rest, "/"
		} else {
			authority, path = rest[:slash], rest[slash:]
		}
		host, port = splitHostPort(authority)
		return host, port, path
	}
	if target == "" {
		return "", "", "/"
	}
	return "", "", target
}

func splitHostPort(authority string) (host, port string) {
	if i := strings.LastIndex(authority, ":"); i != -1 {
		return authority[:i], authority[i+1:]
	}
	return authority, ""
}

// UnparseHeaders re-serializes the ordered header list verbatim, each on its
// own CRLF-terminated line, for ForwardRequest to append after the
// proxy-authored request line and Host/Connection/User-Agent headers. Host,
// Connection and any Proxy-* header are dropped.
func UnparseHeaders(headers []Header) []byte {
	var buf bytes.Buffer
	for _, h := range headers {
		if strings.EqualFold(h.Name, "Host") ||
			strings.EqualFold(h.Name, "Connection") ||
			strings.EqualFold(h.Name, "Proxy-Connection") ||
			strings.HasPrefix(strings.ToLower(h.Name), "proxy-") {
			continue
		}
		buf.WriteString(h.Name)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
