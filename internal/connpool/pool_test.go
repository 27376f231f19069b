package connpool

import (
	"net"
	"testing"
	"time"
)

// pipeConn returns one end of an in-process connection; the other end is
// discarded, which is fine for pool bookkeeping tests.
func pipeConn(t *testing.T) net.Conn {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a
}

func TestAcquireOnEmptyPool(t *testing.T) {
	p := New(4, time.Minute)
	if _, ok := p.Acquire("example.com", 80); ok {
		t.Fatal("empty pool should not yield a connection")
	}
}

func TestReleaseAcquireRoundtrip(t *testing.T) {
	p := New(4, time.Minute)
	conn := pipeConn(t)

	p.Release(conn, "example.com", 80)
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1", p.Len())
	}

	got, ok := p.Acquire("example.com", 80)
	if !ok {
		t.Fatal("expected a pooled connection")
	}
	if got != conn {
		t.Fatal("acquired a different connection than released")
	}
	if p.Len() != 0 {
		t.Fatal("acquire must remove the connection from the pool")
	}
}

func TestAcquireKeyMismatch(t *testing.T) {
	p := New(4, time.Minute)
	p.Release(pipeConn(t), "example.com", 80)

	if _, ok := p.Acquire("example.com", 8080); ok {
		t.Fatal("port mismatch must not match")
	}
	if _, ok := p.Acquire("example.org", 80); ok {
		t.Fatal("host mismatch must not match")
	}
	if p.Len() != 1 {
		t.Fatal("mismatched acquires must leave the pool intact")
	}
}

func TestStaleConnectionClosedNotReturned(t *testing.T) {
	p := New(4, 10*time.Millisecond)
	p.Release(pipeConn(t), "example.com", 80)

	time.Sleep(25 * time.Millisecond)

	if _, ok := p.Acquire("example.com", 80); ok {
		t.Fatal("stale connection must not be returned")
	}
	if p.Len() != 0 {
		t.Fatal("stale connection must be dropped from the pool")
	}
}

func TestStaleSlotDoesNotShadowFresherOne(t *testing.T) {
	p := New(4, 40*time.Millisecond)

	stale := pipeConn(t)
	p.Release(stale, "example.com", 80)
	time.Sleep(60 * time.Millisecond)

	fresh := pipeConn(t)
	p.Release(fresh, "example.com", 80)

	// The stale slot sits earlier in the scan; Acquire must close it and
	// keep going, not report a miss.
	got, ok := p.Acquire("example.com", 80)
	if !ok {
		t.Fatal("fresh connection behind a stale slot must still be found")
	}
	if got != fresh {
		t.Fatal("acquire returned the stale connection")
	}
	if p.Len() != 0 {
		t.Fatalf("len = %d, want 0 (stale dropped, fresh checked out)", p.Len())
	}
}

func TestCapacityBound(t *testing.T) {
	const capacity = 3
	p := New(capacity, time.Minute)

	for i := 0; i < capacity+2; i++ {
		p.Release(pipeConn(t), "example.com", 80)
	}
	if p.Len() != capacity {
		t.Fatalf("len = %d, want %d", p.Len(), capacity)
	}
}

func TestDrainEmptiesPool(t *testing.T) {
	p := New(4, time.Minute)
	p.Release(pipeConn(t), "a.example", 80)
	p.Release(pipeConn(t), "b.example", 80)

	p.Drain()
	if p.Len() != 0 {
		t.Fatal("drain must empty the pool")
	}
}
