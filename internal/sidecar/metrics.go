package sidecar

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records sidecar request counts and latencies. A nil *Metrics
// records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewMetrics registers the sidecar collectors with reg, or with the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "sidecar",
			Name:      "requests_total",
			Help:      "Sidecar requests by endpoint and HTTP status code (0 when no response was received)",
		}, []string{"endpoint", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aide",
			Subsystem: "sidecar",
			Name:      "request_duration_seconds",
			Help:      "Time until the sidecar returned response headers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "sidecar",
			Name:      "symbol_cache_total",
			Help:      "Symbol lookups served from cache (hit) or the sidecar (miss)",
		}, []string{"result"}),
	}
}

func (m *Metrics) observe(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) cacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cache.WithLabelValues("hit").Inc()
	} else {
		m.cache.WithLabelValues("miss").Inc()
	}
}
