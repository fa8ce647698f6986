// Package metrics provides the Prometheus collectors for the gateway:
// request outcomes, per-stage rejections, rate limiter decisions,
// circuit breaker states, and upstream latency. The collector's methods
// are nil-safe so the pipeline can run with metrics disabled.
package metrics
