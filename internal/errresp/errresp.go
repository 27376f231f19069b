// Package errresp renders the proxy's own error responses — it never parses
// or forwards anything, it only writes a complete, self-contained HTTP/1.1
// response for the status codes the core can raise.
package errresp

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// reason is the tiny HTML body text for each status this emitter supports.
var reason = map[int]string{
	http.StatusBadRequest:              "Bad Request",
	http.StatusForbidden:               "Forbidden",
	http.StatusNotFound:                "Not Found",
	http.StatusInternalServerError:     "Internal Server Error",
	http.StatusNotImplemented:          "Not Implemented",
	http.StatusServiceUnavailable:      "Service Unavailable",
	http.StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// Write emits a complete HTTP/1.1 response for one of the supported status
// codes: status line, Content-Length, Content-Type, Connection: keep-alive,
// an RFC 1123 Date, a server identifier, and a tiny HTML body. Write errors
// are ignored — by the time an error response is being sent, there is
// nothing more useful to do with a broken connection.
func Write(w io.Writer, status int, ident string) {
	text, ok := reason[status]
	if !ok {
		text = http.StatusText(status)
	}
	body := fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", status, text)

	resp := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\n"+
			"Content-Length: %d\r\n"+
			"Content-Type: text/html\r\n"+
			"Connection: keep-alive\r\n"+
			"Date: %s\r\n"+
			"Server: %s\r\n"+
			"\r\n"+
			"%s",
		status, text, len(body), time.Now().UTC().Format(http.TimeFormat), ident, body,
	)

	_, _ = io.WriteString(w, resp)
}
