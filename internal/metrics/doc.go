// Package metrics exposes scheduler observability hooks. The Recorder
// interface keeps the scheduler independent of Prometheus.
package metrics
