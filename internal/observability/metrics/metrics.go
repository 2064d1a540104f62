package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics exposes counters/histograms for scheduling backend calls.
type CatalogMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	m := &CatalogMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "catalog",
			Name:      "requests_total",
			Help:      "Total scheduling backend requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "catalog",
			Name:      "request_duration_seconds",
			Help:      "Latency of scheduling backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

// ObserveRequest records one backend call. outcome is "ok", "timeout",
// "network" or "backend".
func (m *CatalogMetrics) ObserveRequest(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, outcome).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(seconds)
}

// FloorCacheMetrics counts floor cache lookups.
type FloorCacheMetrics struct {
	lookups *prometheus.CounterVec
}

func NewFloorCacheMetrics(reg prometheus.Registerer) *FloorCacheMetrics {
	m := &FloorCacheMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "floor_cache",
			Name:      "lookups_total",
			Help:      "Floor cache lookups by result (hit, miss, store_hit, fetch_error)",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.lookups)
	return m
}

func (m *FloorCacheMetrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}
