// Package breaker implements a count-based sliding window circuit breaker
// and a process-wide pool keyed by project prefix.
//
// The breaker protects each project's upstream from sustained failure:
// upstream 5xx responses, connection errors, and time-limiter deadline
// hits all count as failures. While open, calls fail fast with ErrOpen,
// which the pipeline surfaces as a 503 error envelope.
//
// # States
//
//   - Closed: calls proceed; the last N outcomes are recorded. When the
//     window is full and the failure rate reaches the threshold, the
//     breaker opens.
//   - Open: calls fail fast until the wait duration elapses.
//   - HalfOpen: a limited number of concurrent trial calls probe the
//     upstream; their aggregate outcome decides between closing and
//     reopening.
package breaker
