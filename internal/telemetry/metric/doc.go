// Package metric provides Prometheus metrics for onvifmesh.
//
//   - prometheus.go: the registry, instruments and HTTP handler
//   - collector.go: a collector sampling fleet state at scrape time
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
