package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeDominic92/okta-sso-hub/metric"
)

// ringMetrics holds Prometheus metrics for ring operations.
type ringMetrics struct {
	appends   prometheus.Counter
	evictions prometheus.Counter
	snapshots prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

// newRingMetrics creates and registers ring metrics with the provided registry.
func newRingMetrics(registry *metric.MetricsRegistry, prefix string) (*ringMetrics, error) {
	m := &ringMetrics{
		appends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ssohub",
			Subsystem:   "history",
			Name:        "appends_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of history append operations",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ssohub",
			Subsystem:   "history",
			Name:        "evictions_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of items evicted from the history",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "ssohub",
			Subsystem:   "history",
			Name:        "snapshots_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of history snapshot reads",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ssohub",
			Subsystem:   "history",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of items retained in the history",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "ssohub",
			Subsystem:   "history",
			Name:        "utilization",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "History fill level as a fraction (0.0 to 1.0)",
		}),
	}

	if err := registry.RegisterCounter(prefix, "history_appends", m.appends); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "history_evictions", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "history_snapshots", m.snapshots); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "history_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "history_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

// recordAppend increments the append counter and updates size/utilization.
func (m *ringMetrics) recordAppend(size, capacity int) {
	m.appends.Inc()
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}

// recordEviction increments the eviction counter.
func (m *ringMetrics) recordEviction() {
	m.evictions.Inc()
}

// recordSnapshot increments the snapshot counter.
func (m *ringMetrics) recordSnapshot() {
	m.snapshots.Inc()
}

// updateSize sets the current size and utilization.
func (m *ringMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
