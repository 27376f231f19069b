package queue

import (
	"testing"
	"time"
)

func item(addr string) WorkItem {
	return WorkItem{ClientAddr: addr}
}

func TestFIFOOrder(t *testing.T) {
	q := New(8)
	for _, a := range []string{"one", "two", "three"} {
		if !q.Enqueue(item(a)) {
			t.Fatalf("enqueue %s failed", a)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		got, ok := q.Dequeue()
		if !ok || got.ClientAddr != want {
			t.Fatalf("dequeue = %q ok=%v, want %q", got.ClientAddr, ok, want)
		}
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(8)
	done := make(chan WorkItem)

	go func() {
		it, _ := q.Dequeue()
		done <- it
	}()

	select {
	case <-done:
		t.Fatal("dequeue returned before anything was enqueued")
	case <-time.After(30 * time.Millisecond):
	}

	q.Enqueue(item("late"))
	select {
	case it := <-done:
		if it.ClientAddr != "late" {
			t.Fatalf("got %q, want late", it.ClientAddr)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := New(1)
	q.Enqueue(item("first"))

	entered := make(chan struct{})
	done := make(chan bool)
	go func() {
		close(entered)
		done <- q.Enqueue(item("second"))
	}()

	<-entered
	select {
	case <-done:
		t.Fatal("enqueue returned while the queue was full")
	case <-time.After(30 * time.Millisecond):
	}

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("dequeue failed")
	}
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("unblocked enqueue should succeed")
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue never woke up")
	}
}

func TestShutdownDrainsThenSentinels(t *testing.T) {
	q := New(8)
	q.Enqueue(item("queued"))
	q.Shutdown()

	// Items already queued are still handed out.
	it, ok := q.Dequeue()
	if !ok || it.ClientAddr != "queued" {
		t.Fatalf("dequeue after shutdown = %q ok=%v, want queued item", it.ClientAddr, ok)
	}

	// Then the sentinel, immediately and forever.
	if _, ok := q.Dequeue(); ok {
		t.Fatal("drained queue must return the sentinel after shutdown")
	}

	// Producers are refused.
	if q.Enqueue(item("too-late")) {
		t.Fatal("enqueue after shutdown must be refused")
	}
}

func TestShutdownReleasesBlockedConsumers(t *testing.T) {
	q := New(8)
	const consumers = 4
	done := make(chan bool, consumers)
	for i := 0; i < consumers; i++ {
		go func() {
			_, ok := q.Dequeue()
			done <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	for i := 0; i < consumers; i++ {
		select {
		case ok := <-done:
			if ok {
				t.Fatal("woken consumer should see the sentinel")
			}
		case <-time.After(time.Second):
			t.Fatal("blocked consumer never released by shutdown")
		}
	}
}
