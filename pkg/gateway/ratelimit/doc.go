// Package ratelimit implements distributed token-bucket rate limiting on
// top of the shared key-value store.
//
// The bucket state for each (project, subject) pair lives in a store hash
// with a TTL, and every decision is one atomic server-side script
// evaluation: read, refill by elapsed server time, decrement, write back.
// Because the script runs on the store with the store's own clock, any
// number of gateway instances share a single consistent bucket per key.
//
// Store failures fail open by design: a limiter outage degrades to
// unlimited traffic rather than a gateway outage.
package ratelimit
