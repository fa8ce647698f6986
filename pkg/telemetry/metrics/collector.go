package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"myinfra-hq/smartgate/pkg/config"
)

// Collector owns all gateway Prometheus metrics. All recording methods
// are safe to call on a nil receiver, so callers never have to guard for
// metrics being disabled.
//
// Metrics:
//   - <ns>_requests_total{project,status}: terminal responses by project
//   - <ns>_request_duration_seconds{project}: end-to-end request latency
//   - <ns>_rejections_total{project,stage}: pipeline rejections by stage
//   - <ns>_ratelimit_decisions_total{project,outcome}: limiter outcomes
//   - <ns>_breaker_state{project}: 0 closed, 1 open, 2 half-open
//   - <ns>_upstream_duration_seconds{project}: upstream call latency
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rejectionsTotal  *prometheus.CounterVec
	limiterDecisions *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	upstreamDuration *prometheus.HistogramVec
}

// NewCollector creates and registers the gateway metrics. If registry is
// nil a fresh one is created, pre-loaded with the standard Go and process
// collectors.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	ns := cfg.Namespace

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "requests_total",
				Help:      "Total number of requests by project and terminal status",
			},
			[]string{"project", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "request_duration_seconds",
				Help:      "End-to-end request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"project"},
		),

		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rejections_total",
				Help:      "Requests rejected by the pipeline, by stage",
			},
			[]string{"project", "stage"},
		),

		limiterDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limiter decisions by outcome",
			},
			[]string{"project", "outcome"},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
			},
			[]string{"project"},
		),

		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "upstream_duration_seconds",
				Help:      "Upstream call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"project"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.rejectionsTotal,
		c.limiterDecisions,
		c.breakerState,
		c.upstreamDuration,
	)

	return c
}

// ObserveRequest records one terminal response.
func (c *Collector) ObserveRequest(project, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(project, status).Inc()
	c.requestDuration.WithLabelValues(project).Observe(elapsed.Seconds())
}

// RecordRejection records a pipeline rejection at a named stage
// ("resolve", "csrf", "auth", "ratelimit", "breaker").
func (c *Collector) RecordRejection(project, stage string) {
	if c == nil {
		return
	}
	c.rejectionsTotal.WithLabelValues(project, stage).Inc()
}

// RecordLimiterDecision records a limiter outcome
// ("allowed", "denied", "failed_open").
func (c *Collector) RecordLimiterDecision(project, outcome string) {
	if c == nil {
		return
	}
	c.limiterDecisions.WithLabelValues(project, outcome).Inc()
}

// SetBreakerState records the current state of a project's breaker.
func (c *Collector) SetBreakerState(project string, state float64) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(project).Set(state)
}

// ObserveUpstream records the latency of one upstream call.
func (c *Collector) ObserveUpstream(project string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.upstreamDuration.WithLabelValues(project).Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving the registry in the
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
