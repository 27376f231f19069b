package admin

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vivianshong/cacheproxy/internal/admission"
	"github.com/vivianshong/cacheproxy/internal/cache"
	"github.com/vivianshong/cacheproxy/internal/connpool"
	"github.com/vivianshong/cacheproxy/internal/queue"
	"github.com/vivianshong/cacheproxy/internal/stats"
)

// Metrics exposes the proxy's counters to Prometheus. Everything is a Func
// collector over a snapshot, so a scrape only ever takes the short snapshot
// locks of stats, cache, pool, queue and admission.
//
// Metrics:
//   - cacheproxy_requests_total
//   - cacheproxy_cache_hits_total / cacheproxy_cache_misses_total
//   - cacheproxy_bytes_served_total
//   - cacheproxy_mean_latency_ms
//   - cacheproxy_cache_size_bytes / cacheproxy_cache_entries
//   - cacheproxy_pool_idle_connections
//   - cacheproxy_queue_depth
//   - cacheproxy_active_clients
type Metrics struct {
	Registry *prometheus.Registry
}

// NewMetrics builds a registry wired to live views of the core's state.
func NewMetrics(st *stats.Stats, c *cache.Cache, p *connpool.Pool, q *queue.Queue, adm *admission.Controller) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "cacheproxy",
			Name:      "requests_total",
			Help:      "Total number of client requests handled",
		},
		func() float64 { return float64(st.Snapshot().TotalRequests) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "cacheproxy",
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		func() float64 { return float64(st.Snapshot().Hits) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "cacheproxy",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		func() float64 { return float64(st.Snapshot().Misses) },
	))
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "cacheproxy",
			Name:      "bytes_served_total",
			Help:      "Total response bytes written to clients",
		},
		func() float64 { return float64(st.Snapshot().BytesServed) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cacheproxy",
			Name:      "mean_latency_ms",
			Help:      "Rolling mean response time in milliseconds",
		},
		func() float64 { return st.Snapshot().MeanLatencyMs },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cacheproxy",
			Name:      "cache_size_bytes",
			Help:      "Current cache footprint in bytes",
		},
		func() float64 { return float64(c.TotalBytes()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cacheproxy",
			Name:      "cache_entries",
			Help:      "Current number of live cache entries",
		},
		func() float64 { return float64(c.Len()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cacheproxy",
			Name:      "pool_idle_connections",
			Help:      "Idle upstream connections currently retained",
		},
		func() float64 { return float64(p.Len()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cacheproxy",
			Name:      "queue_depth",
			Help:      "Accepted clients waiting for a worker",
		},
		func() float64 { return float64(q.Len()) },
	))
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "cacheproxy",
			Name:      "active_clients",
			Help:      "Client sockets queued or checked out by workers",
		},
		func() float64 { return float64(adm.Active()) },
	))

	return &Metrics{Registry: reg}
}
