// Package metric provides the Prometheus metrics registry for kvgate.
//
// A MetricsRegistry owns a private prometheus.Registry holding the core
// gateway metrics (Metrics), the Go runtime and process collectors, and any
// component-specific collectors registered through MetricsRegistrar.
//
// Core metrics:
//
//	kvgate_requests_total{variant,operation,outcome}
//	kvgate_storage_duration_seconds{operation}
//	kvgate_records_purged_total{table}
//	kvgate_nats_connected
//	kvgate_nats_reconnects_total
//
// The outcome label separates not_found from backend_error even though both
// reach the client as the same 404 on read.
//
// Server exposes them on an operations listener of its own, apart from the
// gateway, so the gateway's paths stay free for record keys:
//
//	registry := metric.NewMetricsRegistry()
//	ops := metric.NewServer(":9090", "/metrics", registry)
//	ops.Handle("/healthz", health.Handler(monitor, "kvgate"))
//	go ops.Start()
//	defer ops.Shutdown(ctx)
//
//	registry.CoreMetrics().RecordRequest("client-id", "read", metric.OutcomeNotFound)
package metric
