// Package queue implements the bounded FIFO of accepted client sockets
// between the acceptor and the worker pool.
package queue

import (
	"net"
	"sync"
)

// WorkItem is a single accepted client connection awaiting a worker.
type WorkItem struct {
	Conn       net.Conn
	ClientAddr string
}

// Queue is a bounded FIFO with blocking producer and consumer ends,
// implemented with one mutex and two condition variables: notFull wakes a
// blocked Enqueue when a Dequeue frees a slot; notEmpty wakes a blocked
// Dequeue when an item arrives or shutdown is requested.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items    []WorkItem
	cap      int
	shutdown bool
}

// New returns an empty queue bounded at capacity.
func New(capacity int) *Queue {
	q := &Queue{cap: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue blocks while the queue is full, then appends item. If shutdown has
// been requested it returns false without enqueuing and the caller is
// expected to refuse the connection instead.
func (q *Queue) Enqueue(item WorkItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.cap && !q.shutdown {
		q.notFull.Wait()
	}
	if q.shutdown {
		return false
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks while the queue is empty, then returns the oldest item in
// strict FIFO order. During shutdown, once the queue has drained, Dequeue
// returns (WorkItem{}, false) — the sentinel every worker exits on.
func (q *Queue) Dequeue() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.shutdown {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return WorkItem{}, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// Shutdown sets the shutdown flag and wakes every blocked producer and
// consumer. In-flight items already in the slice are still handed out by
// Dequeue before it starts returning the sentinel.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdown = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len reports the current queue depth, for diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
