// Package stats tracks the monotone counters and rolling-mean latency the
// proxy reports periodically and on shutdown.
package stats

import (
	"fmt"
	"sync"
	"time"
)

// Stats holds the fleet-wide counters. All updates are O(1) and guarded by
// a single mutex; none of them may block on I/O.
type Stats struct {
	mu sync.Mutex

	totalRequests uint64
	hits          uint64
	misses        uint64
	bytesServed   uint64
	meanLatency   float64 // milliseconds
	sampleCount   uint64
}

// New returns a zeroed Stats.
func New() *Stats {
	return &Stats{}
}

// RecordRequest commits one handled request's effect on the counters as a
// single critical section: the total, the hit or miss counter, the bytes
// served, and the latency sample folded into the running mean by
// mean ← (mean·n + sample)/(n+1), then n ← n+1. A concurrent Snapshot
// observes either all of a request's effect or none of it.
func (s *Stats) RecordRequest(hit bool, bytes int, latency time.Duration) {
	ms := float64(latency) / float64(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.bytesServed += uint64(bytes)
	s.meanLatency = (s.meanLatency*float64(s.sampleCount) + ms) / float64(s.sampleCount+1)
	s.sampleCount++
}

// Snapshot is an immutable copy of the counters for reporting.
type Snapshot struct {
	TotalRequests uint64
	Hits          uint64
	Misses        uint64
	BytesServed   uint64
	MeanLatencyMs float64
}

// Snapshot returns a consistent copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TotalRequests: s.totalRequests,
		Hits:          s.hits,
		Misses:        s.misses,
		BytesServed:   s.bytesServed,
		MeanLatencyMs: s.meanLatency,
	}
}

// HitPct and MissPct are computed from the snapshot, guarding against
// division by zero before any request has been served.
func (s Snapshot) HitPct() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return 100 * float64(s.Hits) / float64(s.TotalRequests)
}

func (s Snapshot) MissPct() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return 100 * float64(s.Misses) / float64(s.TotalRequests)
}

// Report renders the human-readable statistics block printed periodically
// and on shutdown.
func (s Snapshot) Report(cacheBytes int64) string {
	return fmt.Sprintf(
		"requests=%d hits=%d (%.1f%%) misses=%d (%.1f%%) bytes_served=%.2fMiB mean_latency=%.2fms cache_size=%.2fMiB",
		s.TotalRequests, s.Hits, s.HitPct(), s.Misses, s.MissPct(),
		float64(s.BytesServed)/(1024*1024), s.MeanLatencyMs,
		float64(cacheBytes)/(1024*1024),
	)
}
