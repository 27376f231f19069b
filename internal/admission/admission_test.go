package admission

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCapEnforced(t *testing.T) {
	c := New(3)
	for i := 0; i < 3; i++ {
		if !c.TryAcquire() {
			t.Fatalf("acquire %d refused below the cap", i)
		}
	}
	if c.TryAcquire() {
		t.Fatal("acquire above the cap must be refused")
	}

	c.Release()
	if !c.TryAcquire() {
		t.Fatal("acquire after a release should succeed")
	}
	if c.Active() != 3 {
		t.Fatalf("active = %d, want 3", c.Active())
	}
}

func TestConcurrentAcquiresNeverExceedCap(t *testing.T) {
	const maxClients = 16
	c := New(maxClients)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 64; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryAcquire() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != maxClients {
		t.Fatalf("admitted %d of 64, want exactly %d", admitted.Load(), maxClients)
	}
	if c.Active() != maxClients {
		t.Fatalf("active = %d, want %d", c.Active(), maxClients)
	}
}

func TestAcquireReleaseChurn(t *testing.T) {
	const maxClients = 4
	c := New(maxClients)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if c.TryAcquire() {
					if a := c.Active(); a < 1 || a > maxClients {
						t.Errorf("active = %d outside [1, %d]", a, maxClients)
						c.Release()
						return
					}
					c.Release()
				}
			}
		}()
	}
	wg.Wait()

	if c.Active() != 0 {
		t.Fatalf("active = %d after churn, want 0", c.Active())
	}
}
