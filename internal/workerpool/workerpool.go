// Package workerpool runs the fixed set of long-lived workers that drain
// the work queue and hand each item to the request handler.
package workerpool

import (
	"sync"

	"github.com/vivianshong/cacheproxy/internal/admission"
	"github.com/vivianshong/cacheproxy/internal/handler"
	"github.com/vivianshong/cacheproxy/internal/queue"
)

// Pool runs n workers against one queue until the queue is shut down.
type Pool struct {
	n         int
	queue     *queue.Queue
	admission *admission.Controller
	handler   *handler.Handler
	wg        sync.WaitGroup
}

// New returns a pool of n workers reading from q and running h.
func New(n int, q *queue.Queue, adm *admission.Controller, h *handler.Handler) *Pool {
	return &Pool{n: n, queue: q, admission: adm, handler: h}
}

// Start launches all workers. Each loops: dequeue a WorkItem; on the
// shutdown sentinel, exit; otherwise run the handler, close the client
// socket, release the admission slot, and signal.
func (p *Pool) Start() {
	p.wg.Add(p.n)
	for i := 0; i < p.n; i++ {
		go func() {
			defer p.wg.Done()
			p.loop()
		}()
	}
}

func (p *Pool) loop() {
	for {
		item, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		p.handler.Handle(item.Conn, item.ClientAddr)
		item.Conn.Close()
		p.admission.Release()
	}
}

// Wait blocks until every worker has exited, i.e. the queue has been shut
// down and drained. Called by main during graceful shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}
