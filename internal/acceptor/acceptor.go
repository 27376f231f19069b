// Package acceptor owns the listening socket and the accept loop. It
// performs the admission check and enqueues work, but none of the
// cache/pool/queue/handler logic lives here.
package acceptor

import (
	"context"
	"net"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/vivianshong/cacheproxy/internal/admission"
	"github.com/vivianshong/cacheproxy/internal/errresp"
	"github.com/vivianshong/cacheproxy/internal/queue"
)

// Acceptor listens on a TCP port and enforces the admission cap before a
// socket is ever handed to the work queue. The host blocklist is checked
// later, by the handler, once the request has actually been parsed —
// peeking the Host header here without consuming it would need raw
// MSG_PEEK support net.Conn doesn't expose.
type Acceptor struct {
	Listener  net.Listener
	Queue     *queue.Queue
	Admission *admission.Controller
	Ident     string
	Logger    zerolog.Logger
}

// Listen opens a TCP listener on all interfaces at port with SO_REUSEADDR
// set, so a restart does not trip over sockets lingering in TIME_WAIT. The
// kernel listen backlog is not settable per-socket from Go; it comes from
// net.core.somaxconn.
func Listen(port int) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}
	return lc.Listen(context.Background(), "tcp", ":"+strconv.Itoa(port))
}

// Run accepts connections until the listener is closed (the signal for
// shutdown: main closes the listener, which unblocks Accept with an error).
func (a *Acceptor) Run() {
	for {
		conn, err := a.Listener.Accept()
		if err != nil {
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetKeepAlive(true)
		}
		a.admit(conn)
	}
}

// admit runs the admission check before ever touching the work queue: a
// socket that would push the active count past the client cap gets
// 503 and is closed immediately, without being enqueued. Queue depth alone
// cannot stand in for this check, since workers hold sockets that are no
// longer on the queue.
func (a *Acceptor) admit(conn net.Conn) {
	clientAddr := conn.RemoteAddr().String()

	if !a.Admission.TryAcquire() {
		errresp.Write(conn, 503, a.Ident)
		conn.Close()
		a.Logger.Warn().Str("client", clientAddr).Msg("admission overflow, refused")
		return
	}

	if !a.Queue.Enqueue(queue.WorkItem{Conn: conn, ClientAddr: clientAddr}) {
		// Shutdown raced the enqueue; release what TryAcquire reserved.
		a.Admission.Release()
		conn.Close()
	}
}
