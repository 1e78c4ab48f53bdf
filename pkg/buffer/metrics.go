package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/fieldstreams/metric"
)

// bufferMetrics holds Prometheus metrics for keyed buffer operations.
type bufferMetrics struct {
	upserts *prometheus.CounterVec
	drains  prometheus.Counter
	drained prometheus.Counter
	size    prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "buffer",
			Name:        "upserts_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of upserts by result (inserted, replaced, rejected)",
		}, []string{"result"}),
		drains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "buffer",
			Name:        "drains_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of drain operations",
		}),
		drained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "buffer",
			Name:        "drained_items_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total number of items handed over by drains",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "buffer",
			Name:        "keys",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of distinct keys held",
		}),
	}

	if err := registry.RegisterCounterVec(prefix, "buffer_upserts", m.upserts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "buffer_drains", m.drains); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "buffer_drained_items", m.drained); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "buffer_keys", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *bufferMetrics) recordUpsert(result UpsertResult, size int) {
	m.upserts.WithLabelValues(result.String()).Inc()
	m.size.Set(float64(size))
}

func (m *bufferMetrics) recordDrain(n int) {
	m.drains.Inc()
	m.drained.Add(float64(n))
	m.size.Set(0)
}
