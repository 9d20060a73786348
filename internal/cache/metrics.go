package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks what the name cache is doing. All fields are optional;
// a nil *Metrics disables collection entirely.
type Metrics struct {
	Hits            prometheus.Counter
	Misses          prometheus.Counter
	Evictions       prometheus.Counter
	Refreshes       prometheus.Counter
	RefreshFailures prometheus.Counter
}

// NewMetrics creates and registers the cache counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "profilecache",
			Subsystem: "name_cache",
			Name:      "hits_total",
			Help:      "Lookups served from the resident cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "profilecache",
			Subsystem: "name_cache",
			Name:      "misses_total",
			Help:      "Lookups that went to the backing store.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "profilecache",
			Subsystem: "name_cache",
			Name:      "evictions_total",
			Help:      "Entries evicted by the size bound.",
		}),
		Refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "profilecache",
			Subsystem: "name_cache",
			Name:      "refreshes_total",
			Help:      "Successful background reloads.",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "profilecache",
			Subsystem: "name_cache",
			Name:      "refresh_failures_total",
			Help:      "Background reloads that failed and left the stale entry in place.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.Refreshes, m.RefreshFailures)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.Hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.Misses.Inc()
	}
}

func (m *Metrics) eviction() {
	if m != nil {
		m.Evictions.Inc()
	}
}

func (m *Metrics) refresh() {
	if m != nil {
		m.Refreshes.Inc()
	}
}

func (m *Metrics) refreshFailure() {
	if m != nil {
		m.RefreshFailures.Inc()
	}
}
