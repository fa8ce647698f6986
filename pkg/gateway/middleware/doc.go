// Package middleware contains the cross-cutting HTTP middleware applied
// around the pipeline: CORS (including direct preflight handling),
// request ID propagation, structured request logging, and panic
// recovery. Recovery is outermost, so even a panicking stage produces a
// well-formed error envelope.
package middleware
