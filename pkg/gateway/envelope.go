package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"myinfra-hq/smartgate/pkg/gateway/breaker"
)

// envelopeTimeFormat is local server time with second precision, no zone.
const envelopeTimeFormat = "2006-01-02T15:04:05"

// maxUnwrapDepth bounds the cause-chain walk during classification.
const maxUnwrapDepth = 10

// Envelope is the standardized JSON error body written for every terminal
// status the gateway generates. Field order is fixed.
type Envelope struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// NewEnvelope builds an envelope for the given status, detail message,
// and original request path.
func NewEnvelope(status int, message, path string) Envelope {
	return Envelope{
		Timestamp: time.Now().Format(envelopeTimeFormat),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      path,
	}
}

// Classify maps an arbitrary error to a gateway *Error by walking its
// cause chain, depth-limited to maxUnwrapDepth. An already-classified
// *Error anywhere in the chain wins; otherwise breaker rejections map to
// 503, deadline errors to 504, connection errors to 502, and everything
// else to 500.
func Classify(err error) *Error {
	// The chain is stepped one link at a time rather than with errors.As,
	// which would search to arbitrary depth.
	curr := err
	for depth := 0; curr != nil && depth < maxUnwrapDepth; depth++ {
		if gwErr, ok := curr.(*Error); ok {
			return gwErr
		}

		switch curr {
		case breaker.ErrOpen:
			return ErrBreakerOpen(err)
		case context.DeadlineExceeded:
			return ErrUpstreamTimeout(err)
		}

		if netErr, ok := curr.(net.Error); ok && netErr.Timeout() {
			return ErrUpstreamTimeout(err)
		}
		switch curr.(type) {
		case *net.OpError, *net.DNSError:
			return ErrUpstreamUnreachable(err)
		}

		curr = errors.Unwrap(curr)
	}

	return ErrInternal(err)
}

// WriteEnvelope writes env as the response. The Content-Type is always
// application/json. If serialization itself fails, a hand-written JSON
// fallback with status 500 is emitted instead.
func WriteEnvelope(w http.ResponseWriter, env Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		fallback := fmt.Sprintf(
			`{"timestamp":%q,"status":500,"error":"Internal Server Error","message":"Error serialization failed.","path":%q}`,
			time.Now().Format(envelopeTimeFormat), env.Path,
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Status)
	_, _ = w.Write(body)
}
