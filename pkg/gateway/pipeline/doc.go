// Package pipeline composes the gateway stages into one http.Handler.
//
// Per request the order is fixed: resolve the project by longest path
// prefix, enforce CSRF on write methods, authenticate, rate limit, then
// forward upstream through the project's circuit breaker. The first
// stage to produce a terminal status short-circuits the rest, and every
// terminal status the gateway generates is written as the standard JSON
// error envelope.
//
// Cancellation is threaded through the request context: a client
// disconnect or a fired time limiter tears down the in-flight upstream
// call. Tokens already taken from the rate limiter are not refunded.
package pipeline
