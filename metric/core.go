package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the ingest pipeline metrics shared by all components
type Metrics struct {
	// Service metrics
	ServiceStatus *prometheus.GaugeVec
	ErrorsTotal   *prometheus.CounterVec

	// Ingest metrics
	MessagesReceived *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	ReadingsAccepted *prometheus.CounterVec
	ReadingsDegraded *prometheus.CounterVec

	// Flush metrics
	Flushes         *prometheus.CounterVec
	FlushedReadings *prometheus.CounterVec
	FlushDuration   *prometheus.HistogramVec
	SinkWrites      *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fieldstreams",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of datagrams handed to the parser",
			},
			[]string{"service"},
		),

		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "messages",
				Name:      "dropped_total",
				Help:      "Total number of datagrams dropped (malformed, control, rejected)",
			},
			[]string{"service", "reason"},
		),

		ReadingsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "readings",
				Name:      "accepted_total",
				Help:      "Total number of readings upserted into the buffer",
			},
			[]string{"service"},
		),

		ReadingsDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "readings",
				Name:      "degraded_total",
				Help:      "Total number of fields defaulted to zero, by field",
			},
			[]string{"service", "field"},
		),

		Flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "flush",
				Name:      "cycles_total",
				Help:      "Total number of flush cycles",
			},
			[]string{"service"},
		),

		FlushedReadings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "flush",
				Name:      "readings_total",
				Help:      "Total number of readings drained by flush cycles",
			},
			[]string{"service"},
		),

		FlushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldstreams",
				Subsystem: "flush",
				Name:      "duration_seconds",
				Help:      "Flush cycle duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),

		SinkWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "sink",
				Name:      "writes_total",
				Help:      "Total number of sink writes by sink and status (ok, error)",
			},
			[]string{"sink", "status"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fieldstreams",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fieldstreams",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordMessageReceived increments received message counter
func (c *Metrics) RecordMessageReceived(service string) {
	c.MessagesReceived.WithLabelValues(service).Inc()
}

// RecordMessageDropped increments dropped message counter
func (c *Metrics) RecordMessageDropped(service, reason string) {
	c.MessagesDropped.WithLabelValues(service, reason).Inc()
}

// RecordReadingAccepted increments the accepted reading counter and one
// degraded counter per defaulted field
func (c *Metrics) RecordReadingAccepted(service string, degraded []string) {
	c.ReadingsAccepted.WithLabelValues(service).Inc()
	for _, field := range degraded {
		c.ReadingsDegraded.WithLabelValues(service, field).Inc()
	}
}

// RecordFlush records one flush cycle
func (c *Metrics) RecordFlush(service string, readings int, duration time.Duration) {
	c.Flushes.WithLabelValues(service).Inc()
	c.FlushedReadings.WithLabelValues(service).Add(float64(readings))
	c.FlushDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordSinkWrite increments the sink write counter
func (c *Metrics) RecordSinkWrite(sink string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	c.SinkWrites.WithLabelValues(sink, status).Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
