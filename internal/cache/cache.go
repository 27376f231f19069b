/*
Package cache implements the proxy's shared response cache: a bounded-size,
byte-budgeted mapping from raw request bytes to raw response bytes, backed by
a doubly-linked recency list for LRU eviction.

================================================================================
ARCHITECTURAL OVERVIEW
================================================================================

The cache combines two structures, the same shape used by TempusCache:

 1. Hash Map (map[string]*list.Element)
    - O(1) lookup from a key to its entry.

 2. Doubly Linked List (*list.List)
    - Orders entries from most-recently-accessed (front) to
      least-recently-accessed (back), the eviction order.

================================================================================
CONCURRENCY MODEL
================================================================================

A single sync.RWMutex guards both the map and the list. Unlike a cache that
simply takes the write lock on every Lookup, this one follows the read-then-
upgrade discipline the proxy's design calls for: Lookup takes the read lock
to find the entry, releases it, then takes the write lock and re-validates
that the key is still present before promoting it. Read-mostly traffic gets
parallel lookups; the rare lost race on the upgrade is resolved by re-lookup,
never by blocking readers behind writers on the common path.

================================================================================
BYTE BUDGET
================================================================================

Unlike a count-bounded cache, this one evicts on total footprint: every live
entry counts |key| + |body| + a fixed per-entry overhead toward a total
ceiling, and any single entry whose own size exceeds the per-entry ceiling is
rejected outright rather than ever being admitted and immediately evicted.
*/
package cache

import (
	"container/list"
	"sync"
	"time"
)

// entryOverhead approximates the fixed bookkeeping cost of one entry
// (list node, map slot, timestamps, counters) charged against the total
// byte budget alongside key and body.
const entryOverhead = 64

// Entry is an immutable snapshot of a cached response: Body and Len never
// change after insertion. Only LastAccessAt and AccessCount (held on the
// backing node, not this snapshot) change on later lookups.
type Entry struct {
	Body         []byte
	Len          int64
	InsertedAt   time.Time
	LastAccessAt time.Time
	AccessCount  uint64
}

// node is the value stored at each recency-list element.
type node struct {
	key          string
	body         []byte
	insertedAt   time.Time
	lastAccessAt time.Time
	accessCount  uint64
}

func (n *node) size() int64 {
	return int64(len(n.key)) + int64(len(n.body)) + entryOverhead
}

// Cache is the proxy's shared LRU response cache.
type Cache struct {
	mu sync.RWMutex

	index map[string]*list.Element
	lru   *list.List // front = most recently used, back = least

	maxTotalBytes int64
	maxEntryBytes int64
	totalBytes    int64

	hits   uint64
	misses uint64
}

// New returns an empty cache bounded by maxTotalBytes overall and
// maxEntryBytes per entry.
func New(maxTotalBytes, maxEntryBytes int64) *Cache {
	return &Cache{
		index:         make(map[string]*list.Element),
		lru:           list.New(),
		maxTotalBytes: maxTotalBytes,
		maxEntryBytes: maxEntryBytes,
	}
}

/*
Lookup returns an immutable snapshot of the entry for key, if present.

As a side effect, a hit promotes the entry to the head of the recency list
and sets LastAccessAt = now, AccessCount += 1. It also increments the hit
counter; a miss increments the miss counter.

LOCK DISCIPLINE

Lookup first takes the read lock to find the node. If absent, it releases
the read lock, takes the write lock just long enough to bump the miss
counter, and returns. If present, the read lock is released and the
write lock is acquired, then the key is looked up again: another goroutine
may have evicted or replaced it in between. Only if the (possibly different)
node is still present under the write lock does the promotion happen. This
re-validation is what makes the upgrade race safe: a lost race degrades to
"no promotion this time," never to a lookup on a freed or stale node.
*/
func (c *Cache) Lookup(key string) (Entry, bool) {
	c.mu.RLock()
	_, ok := c.index[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		// Evicted or replaced between the read probe and the write lock.
		c.misses++
		return Entry{}, false
	}

	n := elem.Value.(*node)
	n.lastAccessAt = time.Now()
	n.accessCount++
	c.lru.MoveToFront(elem)
	c.hits++

	return Entry{
		Body:         n.body,
		Len:          int64(len(n.body)),
		InsertedAt:   n.insertedAt,
		LastAccessAt: n.lastAccessAt,
		AccessCount:  n.accessCount,
	}, true
}

/*
Insert attempts to store body under key.

Rejected (returns false) when the entry alone — |key| + |body| + overhead —
exceeds maxEntryBytes; the cache is left untouched. Otherwise entries are
evicted from the tail of the recency list until the new entry fits within
maxTotalBytes, then the new entry is prepended at the head.

A duplicate key replaces the existing entry in place: the old node is
unlinked and freed, and the replacement is inserted fresh at the head, as if
it had never been present. Eviction and insertion happen under one held
write lock, so a concurrent Insert can never observe a size that reflects
only half of this operation.
*/
func (c *Cache) Insert(key string, body []byte) bool {
	n := &node{key: key, body: body, insertedAt: time.Now()}
	n.lastAccessAt = n.insertedAt
	size := n.size()
	if size > c.maxEntryBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index[key]; ok {
		c.removeLocked(existing)
	}

	for c.totalBytes+size > c.maxTotalBytes && c.lru.Len() > 0 {
		c.evictOneLocked()
	}

	elem := c.lru.PushFront(n)
	c.index[key] = elem
	c.totalBytes += size
	return true
}

// EvictOne removes the least-recently-used entry. No-op when empty.
func (c *Cache) EvictOne() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictOneLocked()
}

// evictOneLocked removes the tail entry. Callers hold the write lock.
// Ties on LastAccessAt are broken by list order: the node closer to the
// tail goes first.
func (c *Cache) evictOneLocked() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeLocked(elem)
}

func (c *Cache) removeLocked(elem *list.Element) {
	n := elem.Value.(*node)
	c.lru.Remove(elem)
	delete(c.index, n.key)
	c.totalBytes -= n.size()
}

// TotalBytes returns the current footprint charged against maxTotalBytes.
func (c *Cache) TotalBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalBytes
}

// HitsMisses returns the running hit/miss counters.
func (c *Cache) HitsMisses() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of live entries, for diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Keys returns a snapshot of live keys, most-recently-used first. Used only
// by the admin dashboard; never called from the request hot path.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, c.lru.Len())
	for e := c.lru.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*node).key)
	}
	return keys
}
