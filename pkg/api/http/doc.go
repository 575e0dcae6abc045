// Package http serves the scheduler's REST API with gin: run records and
// cancellation under /api/v1, a /health probe backed by the worker pool and
// Prometheus metrics on /metrics.
package http
