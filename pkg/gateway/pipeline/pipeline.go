package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"myinfra-hq/smartgate/pkg/audit"
	"myinfra-hq/smartgate/pkg/gateway"
	"myinfra-hq/smartgate/pkg/gateway/auth"
	"myinfra-hq/smartgate/pkg/gateway/breaker"
	"myinfra-hq/smartgate/pkg/gateway/proxy"
	"myinfra-hq/smartgate/pkg/gateway/ratelimit"
	"myinfra-hq/smartgate/pkg/telemetry/metrics"
)

// Handler executes the request-processing pipeline in fixed order:
// resolve, CSRF, authenticate, rate limit, then forward through the
// project's circuit breaker. Each stage either passes the request on or
// produces a terminal status, written as the standard error envelope.
//
// The registry is held behind an atomic pointer: configuration reloads
// swap in a complete new snapshot while in-flight requests keep the one
// they resolved against.
type Handler struct {
	registry atomic.Pointer[gateway.Registry]

	auth      *auth.Authenticator
	limiter   *ratelimit.Limiter
	breakers  *breaker.Pool
	forwarder *proxy.Forwarder

	metrics  *metrics.Collector
	recorder *audit.Recorder
	logger   *slog.Logger

	// globalTimeout is the upstream deadline for projects without their
	// own time limiter. Zero means no deadline.
	globalTimeout time.Duration
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Metrics       *metrics.Collector
	Recorder      *audit.Recorder
	Logger        *slog.Logger
	GlobalTimeout time.Duration
}

// New creates the pipeline handler. All collaborators are passed in
// explicitly; the handler keeps no process-wide state beyond the breaker
// pool it is given.
func New(registry *gateway.Registry, authn *auth.Authenticator, limiter *ratelimit.Limiter,
	breakers *breaker.Pool, forwarder *proxy.Forwarder, opts Options) *Handler {

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		auth:          authn,
		limiter:       limiter,
		breakers:      breakers,
		forwarder:     forwarder,
		metrics:       opts.Metrics,
		recorder:      opts.Recorder,
		logger:        logger.With("component", "pipeline"),
		globalTimeout: opts.GlobalTimeout,
	}
	h.registry.Store(registry)
	return h
}

// SwapRegistry atomically replaces the project registry. In-flight
// requests are unaffected.
func (h *Handler) SwapRegistry(r *gateway.Registry) {
	h.registry.Store(r)
}

// ServeHTTP runs the pipeline for one request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := r.URL.Path
	rw := newResponseWriter(w)

	// Stage 1: resolve.
	project := h.registry.Load().Resolve(path)
	if project == nil {
		h.logger.Warn("no project matched", "path", path, "host", r.Host)
		h.reject(rw, r, "", "resolve", gateway.ErrNoProject(), gateway.Identity{}, start)
		return
	}
	prefix := project.Prefix()

	// Stage 2: CSRF.
	if project.Config.CSRFRequired && isWriteMethod(r.Method) {
		if strings.TrimSpace(r.Header.Get("X-XSRF-TOKEN")) == "" {
			h.logger.Warn("blocked write request without CSRF token", "project", prefix, "path", path)
			h.reject(rw, r, prefix, "csrf", gateway.ErrCSRFMissing(), gateway.Identity{}, start)
			return
		}
	}

	// Stage 3: authenticate. No identity plus a public path admits the
	// request anonymously; no identity otherwise is a 401.
	identity, ok := h.auth.Authenticate(r.Context(), r, project)
	if !ok {
		if !project.IsPublicPath(path) {
			h.reject(rw, r, prefix, "auth", gateway.ErrUnauthorized(), gateway.Identity{}, start)
			return
		}
		identity = gateway.Anonymous
	}

	// Stage 4: rate limit.
	ip := clientIP(r)
	decision := h.limiter.Allow(r.Context(), prefix, project.Config.RateLimit, identity.ID, ip)
	switch {
	case decision.FailedOpen:
		h.metrics.RecordLimiterDecision(prefix, "failed_open")
	case decision.Allowed:
		h.metrics.RecordLimiterDecision(prefix, "allowed")
	default:
		h.metrics.RecordLimiterDecision(prefix, "denied")
		h.reject(rw, r, prefix, "ratelimit", gateway.ErrRateLimited(), identity, start)
		return
	}

	// Stage 5: forward through the breaker.
	h.forward(rw, r, project, identity, start)
}

// forward runs the breaker-wrapped upstream call and finishes the request.
func (h *Handler) forward(rw *responseWriter, r *http.Request, project *gateway.Project,
	identity gateway.Identity, start time.Time) {

	prefix := project.Prefix()

	ctx := r.Context()
	timeout := h.globalTimeout
	if tl := project.Config.TimeLimiter; tl != nil {
		timeout = tl.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	br := h.breakers.Get(prefix, project.Config.CircuitBreaker)

	upstreamStart := time.Now()
	err := br.Do(func() error {
		return h.forwarder.Forward(rw, r.WithContext(ctx), project, identity)
	}, isUpstreamFailure)

	h.metrics.ObserveUpstream(prefix, time.Since(upstreamStart))
	h.metrics.SetBreakerState(prefix, float64(br.State()))

	if err == nil {
		h.metrics.ObserveRequest(prefix, strconv.Itoa(rw.Status()), time.Since(start))
		return
	}

	// The client going away is not a gateway outcome: there is nobody
	// left to answer and the upstream is not at fault.
	if errors.Is(r.Context().Err(), context.Canceled) {
		h.logger.Debug("client disconnected", "project", prefix, "path", r.URL.Path)
		h.metrics.ObserveRequest(prefix, "canceled", time.Since(start))
		return
	}

	gwErr := gateway.Classify(err)

	if gwErr.Kind == gateway.KindBreakerOpen {
		h.reject(rw, r, prefix, "breaker", gwErr, identity, start)
		return
	}

	if rw.Committed() {
		// Upstream status and body already streamed through (e.g. a
		// mirrored 5xx, or a failure mid-stream). Record, never rewrite.
		h.logUpstreamError(gwErr, r)
		h.metrics.ObserveRequest(prefix, strconv.Itoa(rw.Status()), time.Since(start))
		return
	}

	h.logUpstreamError(gwErr, r)
	h.writeEnvelope(rw, r, gwErr)
	h.record(r, prefix, gwErr, identity)
	h.metrics.ObserveRequest(prefix, strconv.Itoa(gwErr.Status), time.Since(start))
}

// reject terminates the request at a pipeline stage with the classified
// error, writing the envelope and recording the decision.
func (h *Handler) reject(rw *responseWriter, r *http.Request, prefix, stage string,
	gwErr *gateway.Error, identity gateway.Identity, start time.Time) {

	h.metrics.RecordRejection(prefix, stage)
	h.writeEnvelope(rw, r, gwErr)
	h.record(r, prefix, gwErr, identity)

	project := prefix
	if project == "" {
		project = "unmatched"
	}
	h.metrics.ObserveRequest(project, strconv.Itoa(gwErr.Status), time.Since(start))
}

// writeEnvelope writes the standard error body unless the response is
// already committed, in which case the original outcome stands.
func (h *Handler) writeEnvelope(rw *responseWriter, r *http.Request, gwErr *gateway.Error) {
	if rw.Committed() {
		h.logger.Warn("response already committed, cannot write error envelope",
			"path", r.URL.Path, "status", gwErr.Status)
		return
	}
	gateway.WriteEnvelope(rw, gateway.NewEnvelope(gwErr.Status, gwErr.Message, r.URL.Path))
}

// record sends the decision to the audit log.
func (h *Handler) record(r *http.Request, prefix string, gwErr *gateway.Error, identity gateway.Identity) {
	h.recorder.Record(audit.Decision{
		Project:  prefix,
		Path:     r.URL.Path,
		Method:   r.Method,
		Status:   gwErr.Status,
		Reason:   gwErr.Message,
		Subject:  identity.ID,
		ClientIP: clientIP(r),
	})
}

// logUpstreamError logs per the status class: gateway 5xx at error,
// everything else at warn.
func (h *Handler) logUpstreamError(gwErr *gateway.Error, r *http.Request) {
	if gwErr.Status >= 500 {
		h.logger.Error("gateway error",
			"status", gwErr.Status, "path", r.URL.Path, "error", gwErr.Error())
		return
	}
	h.logger.Warn("gateway error",
		"status", gwErr.Status, "path", r.URL.Path, "error", gwErr.Error())
}

// isUpstreamFailure reports whether an error from the forwarder counts
// against the breaker: upstream 5xx, connection failures, and deadline
// hits do; client disconnects and gateway-side problems do not.
func isUpstreamFailure(err error) bool {
	switch gateway.Classify(err).Kind {
	case gateway.KindUpstreamServerError,
		gateway.KindUpstreamTimeout,
		gateway.KindUpstreamUnreachable:
		return true
	}
	return false
}

// isWriteMethod reports whether the method mutates state for CSRF
// purposes.
func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// clientIP resolves the caller address: the first X-Forwarded-For entry,
// else the remote address, else "unknown".
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
