package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"myinfra-hq/smartgate/pkg/config"
	"myinfra-hq/smartgate/pkg/store"
)

// anonymousID matches the anonymous identity sentinel; anonymous callers
// are keyed by client IP rather than user id.
const anonymousID = "anonymous"

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Remaining is the floor of the tokens left in the bucket after the
	// decision. Only meaningful when the store answered.
	Remaining int64

	// FailedOpen is set when the store was unreachable and the limiter
	// admitted the request anyway.
	FailedOpen bool
}

// Limiter makes token-bucket decisions against the shared key-value
// store. Each decision is a single atomic server-side script evaluation,
// so concurrent gateway instances serialize per key without any
// distributed lock.
//
// Store failures fail open: the limiter is defence in depth, and a store
// outage must not take the whole gateway down.
type Limiter struct {
	store  store.Store
	logger *slog.Logger
}

// NewLimiter creates a limiter backed by the given store.
func NewLimiter(st store.Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:  st,
		logger: logger.With("component", "ratelimit"),
	}
}

// Allow decides whether one request may proceed under the project's rate
// limit. A nil rate limit always allows. The bucket key is derived from
// the authenticated subject when there is one, otherwise from the client
// IP.
func (l *Limiter) Allow(ctx context.Context, prefix string, rl *config.RateLimitConfig, subjectID, clientIP string) Decision {
	if rl == nil {
		return Decision{Allowed: true}
	}

	key := Key(prefix, subjectID, clientIP)

	res, err := l.store.Eval(ctx, tokenBucketScript,
		[]string{key},
		strconv.FormatInt(rl.Capacity, 10),
		strconv.FormatFloat(rl.RefillRate, 'f', -1, 64),
		"1",
	)
	if err != nil {
		l.logger.Error("rate limiter store error, failing open", "key", key, "error", err)
		return Decision{Allowed: true, FailedOpen: true}
	}

	allowed, remaining, err := parseResult(res)
	if err != nil {
		l.logger.Error("rate limiter returned malformed result, failing open", "key", key, "error", err)
		return Decision{Allowed: true, FailedOpen: true}
	}

	return Decision{Allowed: allowed, Remaining: remaining}
}

// Key builds the bucket key for a (project, subject) pair. Authenticated
// subjects get a per-user bucket; anonymous or unauthenticated callers
// share a per-IP bucket.
func Key(prefix, subjectID, clientIP string) string {
	if subjectID != "" && subjectID != anonymousID {
		return "rate_limit:" + prefix + ":user:" + subjectID
	}
	return "rate_limit:" + prefix + ":ip:" + clientIP
}

// parseResult decodes the script's {allowed, remaining} reply.
func parseResult(res interface{}) (bool, int64, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return false, 0, fmt.Errorf("unexpected script result %T", res)
	}
	allowed, ok := vals[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected allowed flag %T", vals[0])
	}
	remaining, ok := vals[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected remaining count %T", vals[1])
	}
	return allowed == 1, remaining, nil
}
