// Package proxy implements the upstream forwarder: it rewrites the
// request URI from the project's target base, filters hop-by-hop and
// reserved identity headers in both directions, injects the authenticated
// identity as X-User-Id/Role/Plan, and streams both bodies without
// buffering.
//
// The forwarder owns the single outbound HTTP client and its connection
// pool. The TCP connect timeout is fixed at 3 seconds; any full-response
// deadline comes via the request context, from the project's time limiter
// or else the gateway-wide global timeout.
package proxy
