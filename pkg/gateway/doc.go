// Package gateway contains the core domain types of the Smartgate
// request-processing pipeline: the authenticated Identity, the immutable
// per-project configuration snapshot with its compiled credentials and
// public-path patterns, the longest-prefix project registry, the gateway
// error taxonomy, and the standardized JSON error envelope writer.
//
// The pipeline itself lives in the pipeline subpackage; authentication,
// rate limiting, circuit breaking, and upstream forwarding live in their
// own subpackages and depend only on the types defined here.
//
// # Error envelope
//
// Every terminal status generated by the gateway produces a JSON body with
// a fixed shape:
//
//	{"timestamp":"2025-01-02T15:04:05","status":404,"error":"Not Found","message":"...","path":"/shop/items"}
//
// The timestamp is local server time with second precision and no zone.
// The path is always the original request path, never the upstream URL.
package gateway
