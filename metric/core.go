package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded on kvgate_requests_total.
const (
	OutcomeOK             = "ok"
	OutcomeInvalid        = "invalid"
	OutcomeNotFound       = "not_found"
	OutcomeMissingPayload = "missing_payload"
	OutcomeBackendErr     = "backend_error"
	OutcomeUnsupported    = "unsupported"
)

// Metrics contains the gateway-level metrics shared by every handler variant.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	StorageDuration *prometheus.HistogramVec
	RecordsPurged   *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvgate",
				Name:      "requests_total",
				Help:      "Total number of handled requests by variant, operation and outcome",
			},
			[]string{"variant", "operation", "outcome"},
		),

		StorageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kvgate",
				Name:      "storage_duration_seconds",
				Help:      "Storage backend call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		RecordsPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kvgate",
				Name:      "records_purged_total",
				Help:      "Total number of expired records removed by the purge loop",
			},
			[]string{"table"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kvgate",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kvgate",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordRequest increments the request counter
func (c *Metrics) RecordRequest(variant, operation, outcome string) {
	c.RequestsTotal.WithLabelValues(variant, operation, outcome).Inc()
}

// RecordStorageDuration records the time spent in one storage call
func (c *Metrics) RecordStorageDuration(operation string, duration time.Duration) {
	c.StorageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPurged adds n removed records for table
func (c *Metrics) RecordPurged(table string, n int) {
	c.RecordsPurged.WithLabelValues(table).Add(float64(n))
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
