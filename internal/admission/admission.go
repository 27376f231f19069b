// Package admission enforces the fleet-wide concurrency cap: no more than
// MAX_CLIENTS client sockets may be queued or checked out by workers at once.
package admission

import "sync"

// Controller is a single non-negative counter under its own mutex with a
// spaceAvailable signal.
type Controller struct {
	mu             sync.Mutex
	spaceAvailable *sync.Cond

	active int
	max    int
}

// New returns a controller capping ActiveCount at max.
func New(max int) *Controller {
	c := &Controller{max: max}
	c.spaceAvailable = sync.NewCond(&c.mu)
	return c
}

// TryAcquire increments ActiveCount and returns true, unless doing so would
// exceed the cap, in which case it returns false and the counter is left
// unchanged. This check happens before the socket is ever enqueued — queue
// depth alone cannot bound admission, since workers hold sockets that are no
// longer on the queue.
func (c *Controller) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active >= c.max {
		return false
	}
	c.active++
	return true
}

// Release decrements ActiveCount and wakes one waiter, if any. Called once a
// worker finishes a client, whether by hit, miss, or error.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active--
	c.spaceAvailable.Signal()
}

// Active reports the current ActiveCount, for diagnostics. It is always
// true that 0 <= Active() <= max.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
