// Package metrics provides Prometheus instrumentation for pipes and stores.
//
// Metrics:
//
//   - pipeline_operations_started_total: operations dispatched (labels: collection, op)
//   - pipeline_operations_completed_total: operations delivered (labels: collection, op, outcome)
//   - pipeline_operation_duration_seconds: exchange latency (labels: collection, op)
//   - pipeline_operations_cancelled_total: operations discarded by Cancel (labels: collection)
//   - pipeline_store_records: records held by a store (labels: collection)
//
// The outcome label is "success" or the error kind (invalid_argument,
// not_found, transport_failure, parse_failure).
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	obs := metrics.New(reg)
//	p := pipe.New(cfg, transport, pipe.WithObserver(obs))
//	http.Handle("/metrics", metrics.Handler(reg))
package metrics
