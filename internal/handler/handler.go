// Package handler implements the per-request state machine: read ->
// parse -> cache lookup -> (stream from cache) or (dispatch to upstream,
// tee the response to client and cache).
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vivianshong/cacheproxy/internal/blocklist"
	"github.com/vivianshong/cacheproxy/internal/cache"
	"github.com/vivianshong/cacheproxy/internal/config"
	"github.com/vivianshong/cacheproxy/internal/connpool"
	"github.com/vivianshong/cacheproxy/internal/errresp"
	"github.com/vivianshong/cacheproxy/internal/parser"
	"github.com/vivianshong/cacheproxy/internal/reqlog"
	"github.com/vivianshong/cacheproxy/internal/stats"
)

// headerTerminator is the four-byte sequence marking end of HTTP headers.
var headerTerminator = []byte("\r\n\r\n")

// errClientWrite marks a tee aborted by the client side going away.
var errClientWrite = errors.New("handler: client write failed")

// Handler runs the request lifecycle for one accepted client connection. It
// is safe for concurrent use by any number of workers: all shared state
// (cache, pool, stats, request log) carries its own synchronization.
type Handler struct {
	Cache     *cache.Cache
	Pool      *connpool.Pool
	Stats     *stats.Stats
	Cfg       config.Config
	Logger    zerolog.Logger
	Blocklist *blocklist.List
	ReqLog    *reqlog.Log
}

// Handle drives one client connection through the full lifecycle. It never
// panics and never surfaces an error to the caller: every failure mode ends
// in either a written status code or a silent abort. Closing the client
// socket is the worker's job, not Handle's.
func (h *Handler) Handle(conn net.Conn, clientAddr string) {
	start := time.Now()
	reqID := uuid.NewString()
	log := h.Logger.With().Str("req_id", reqID).Str("client", clientAddr).Logger()

	raw, ok := h.readHeaders(conn)
	if !ok {
		errresp.Write(conn, 400, h.Cfg.ProxyIdent)
		log.Info().Int("status", 400).Msg("malformed or oversize request")
		h.record(reqlog.Entry{Time: start, Status: "Error"})
		return
	}

	parsed, perr := parser.Parse(raw)
	blocked := perr == nil && h.Blocklist != nil && h.Blocklist.IsBlocked(parsed.Host)

	// A blocked host is never looked up, so a response cached before it was
	// blocked is not served.
	var entry cache.Entry
	hit := false
	if !blocked {
		entry, hit = h.Cache.Lookup(string(raw))
	}
	if hit {
		h.streamFromCache(conn, entry)
		h.Stats.RecordRequest(true, int(entry.Len), time.Since(start))
		log.Info().Int("status", 200).Str("outcome", "hit").Msg("served from cache")
		h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Hit"})
		return
	}

	if perr != nil {
		errresp.Write(conn, 400, h.Cfg.ProxyIdent)
		log.Info().Int("status", 400).Msg("parse error")
		h.record(reqlog.Entry{Time: start, Status: "Error"})
		return
	}
	if parsed.Method != "GET" || parsed.Host == "" || parsed.Path == "" {
		errresp.Write(conn, 501, h.Cfg.ProxyIdent)
		log.Info().Int("status", 501).Str("method", parsed.Method).Msg("unsupported request")
		h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Unsupported"})
		return
	}

	if blocked {
		errresp.Write(conn, 403, h.Cfg.ProxyIdent)
		log.Info().Int("status", 403).Str("host", parsed.Host).Msg("blocked host")
		h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Blocked"})
		return
	}

	port := 80
	if parsed.Port != "" {
		if p, err := strconv.Atoi(parsed.Port); err == nil {
			port = p
		}
	}

	upstream, err := h.connect(parsed.Host, port)
	if err != nil {
		errresp.Write(conn, 500, h.Cfg.ProxyIdent)
		log.Warn().Err(err).Str("host", parsed.Host).Msg("upstream connect failed")
		h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Error"})
		return
	}

	if err := h.forwardRequest(upstream, parsed); err != nil {
		upstream.Close()
		errresp.Write(conn, 500, h.Cfg.ProxyIdent)
		log.Warn().Err(err).Msg("upstream send failed")
		h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Error"})
		return
	}

	captured, totalSize, teeErr := h.teeResponse(conn, upstream, int(h.Cfg.CacheMaxEntry))

	// The connection goes back to the pool only after a clean exchange;
	// any send, receive, or client-side failure taints it.
	if teeErr == nil {
		h.Pool.Release(upstream, parsed.Host, port)
	} else {
		upstream.Close()
	}

	if teeErr != nil && totalSize == 0 && !errors.Is(teeErr, errClientWrite) {
		// Upstream died before a single byte reached the client, so an
		// error response is still coherent.
		errresp.Write(conn, 500, h.Cfg.ProxyIdent)
		log.Warn().Err(teeErr).Msg("upstream read failed")
		h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Error"})
		return
	}

	// Responses that overflowed the capture buffer (totalSize > len(captured))
	// or hit an error mid-stream are never cached.
	if teeErr == nil && totalSize > 0 && totalSize == len(captured) {
		h.Cache.Insert(string(raw), captured)
	}

	h.Stats.RecordRequest(false, totalSize, time.Since(start))
	log.Info().Int("status", 200).Str("outcome", "miss").Int("bytes", totalSize).Msg("served from upstream")
	h.record(reqlog.Entry{Time: start, Method: parsed.Method, Host: parsed.Host, Path: parsed.Path, Status: "Miss"})
}

func (h *Handler) record(e reqlog.Entry) {
	if h.ReqLog != nil {
		h.ReqLog.Record(e)
	}
}

// readHeaders accumulates bytes from conn until the \r\n\r\n terminator
// appears, returning the raw header bytes (also the cache key). It fails if
// the peer closes early, a read errors, or the buffer would overflow
// IOBufferBytes-1 bytes before the terminator is found.
func (h *Handler) readHeaders(conn net.Conn) ([]byte, bool) {
	limit := h.Cfg.IOBufferBytes - 1
	buf := make([]byte, 0, h.Cfg.IOBufferBytes)
	chunk := make([]byte, h.Cfg.IOBufferBytes)

	for {
		if bytes.Contains(buf, headerTerminator) {
			return buf, true
		}
		if len(buf) >= limit {
			return nil, false
		}
		n, err := conn.Read(chunk[:limit-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if bytes.Contains(buf, headerTerminator) {
			return buf, true
		}
		if err != nil {
			return nil, false
		}
	}
}

// streamFromCache writes the cached body to the client in chunks of at most
// IOBufferBytes. A write error terminates early without surfacing anything
// to the client — the connection is simply closed by the caller.
func (h *Handler) streamFromCache(conn net.Conn, entry cache.Entry) {
	chunkSize := h.Cfg.IOBufferBytes
	body := entry.Body
	for len(body) > 0 {
		n := chunkSize
		if n > len(body) {
			n = len(body)
		}
		if _, err := conn.Write(body[:n]); err != nil {
			return
		}
		body = body[n:]
	}
}

// connect acquires a pooled connection to (host, port) if one is fresh, or
// dials a new one bounded by the configured connect timeout.
func (h *Handler) connect(host string, port int) (net.Conn, error) {
	if conn, ok := h.Pool.Acquire(host, port); ok {
		return conn, nil
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return net.DialTimeout("tcp", addr, h.Cfg.ConnectTimeout)
}

// forwardRequest sends a minimal GET request line and header block to
// upstream: request line, Host, Connection, User-Agent, then the client's
// remaining headers verbatim, then the blank line.
func (h *Handler) forwardRequest(upstream net.Conn, req parser.ParsedRequest) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "GET %s %s\r\n", req.Path, req.Version)
	fmt.Fprintf(&buf, "Host: %s\r\n", req.Host)
	buf.WriteString("Connection: keep-alive\r\n")
	fmt.Fprintf(&buf, "User-Agent: %s\r\n", h.Cfg.ProxyIdent)
	buf.Write(parser.UnparseHeaders(req.Headers))
	buf.WriteString("\r\n")

	_, err := upstream.Write(buf.Bytes())
	return err
}

// teeResponse reads from upstream in IOBufferBytes chunks, forwarding each
// chunk to the client immediately (the client write comes first — latency
// beats capture) and appending it to a capture buffer capped at maxCapture
// bytes. Clean upstream EOF returns a nil error; an upstream read error or
// client write error returns the error so the caller neither caches the
// result nor pools the connection.
func (h *Handler) teeResponse(client, upstream net.Conn, maxCapture int) ([]byte, int, error) {
	chunk := make([]byte, h.Cfg.IOBufferBytes)
	var captured bytes.Buffer
	total := 0

	for {
		n, rerr := upstream.Read(chunk)
		if n > 0 {
			if _, werr := client.Write(chunk[:n]); werr != nil {
				return captured.Bytes(), total, errClientWrite
			}
			total += n
			if captured.Len() < maxCapture {
				remaining := maxCapture - captured.Len()
				if remaining > n {
					remaining = n
				}
				captured.Write(chunk[:remaining])
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return captured.Bytes(), total, nil
			}
			return captured.Bytes(), total, rerr
		}
	}
}
