package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "co_wx"

// Metrics holds the Prometheus counters and histograms for the weather service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Upstream feed metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: feed, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: feed

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: cache={winds_aloft,observations}, result={hit,miss}

	// Winds-aloft table lifecycle.
	WindsAloftRefreshes     prometheus.Counter
	WindsAloftInvalidations prometheus.Counter
	WindsAloftStations      prometheus.Gauge
}

// NewMetrics creates all service metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream feed requests by feed and outcome.",
		}, []string{"feed", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream feed request duration in seconds, including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		WindsAloftRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winds_aloft_refreshes_total",
			Help:      "Successful winds-aloft table populations.",
		}),
		WindsAloftInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "winds_aloft_invalidations_total",
			Help:      "Winds-aloft table invalidations.",
		}),
		WindsAloftStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "winds_aloft_stations",
			Help:      "Number of stations in the current winds-aloft table, 0 when empty.",
		}),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.CacheLookups,
		m.WindsAloftRefreshes,
		m.WindsAloftInvalidations,
		m.WindsAloftStations,
	)

	return m
}

// ObserveUpstream records one upstream request for feed
func (m *Metrics) ObserveUpstream(feed string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(feed, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(feed).Observe(time.Since(started).Seconds())
}

// CacheHit records a cache hit
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, "hit").Inc()
}

// CacheMiss records a cache miss
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, "miss").Inc()
}

// TableRefreshed records a winds-aloft table population
func (m *Metrics) TableRefreshed(stations int) {
	if m == nil {
		return
	}
	m.WindsAloftRefreshes.Inc()
	m.WindsAloftStations.Set(float64(stations))
}

// TableInvalidated records a winds-aloft table invalidation
func (m *Metrics) TableInvalidated() {
	if m == nil {
		return
	}
	m.WindsAloftInvalidations.Inc()
	m.WindsAloftStations.Set(0)
}
