package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled          = true
	DefaultCORSMaxAge           = 3600 // 1 hour
	DefaultCORSAllowCredentials = true

	// Store defaults
	DefaultStoreAddress     = "127.0.0.1:6379"
	DefaultStoreDialTimeout = 5 * time.Second

	// Audit defaults
	DefaultAuditSQLitePath    = "data/audit.db"
	DefaultAuditBufferSize    = 1000
	DefaultAuditRetentionDays = 30
	DefaultAuditPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "smartgate"
	DefaultMetricsPath      = "/metrics"

	// Project defaults
	DefaultSessionCookie = "SESSION"

	// Circuit breaker defaults (applied per project when unset)
	DefaultBreakerFailureRateThreshold = 50.0
	DefaultBreakerSlidingWindowSize    = 10
	DefaultBreakerWaitDuration         = 10 * time.Second
	DefaultBreakerHalfOpenCalls        = 3
)

// DefaultCORSAllowedMethods are the methods allowed by default.
func DefaultCORSAllowedMethods() []string {
	return []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
}

// DefaultCORSAllowedHeaders are the request headers allowed by default.
func DefaultCORSAllowedHeaders() []string {
	return []string{
		"Authorization",
		"Content-Type",
		"X-XSRF-TOKEN",
		"Accept",
		"Origin",
		"X-Requested-With",
		"X-User-Id",
		"X-User-Role",
		"X-User-Plan",
	}
}

// DefaultCORSExposedHeaders are the response headers exposed by default.
func DefaultCORSExposedHeaders() []string {
	return []string{"X-User-Id", "X-User-Role", "X-User-Plan"}
}

// ApplyDefaults fills in default values for all unset configuration fields.
// It is called by LoadConfig before validation so that a minimal YAML file
// yields a fully usable configuration.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS. The zero value of Enabled cannot be distinguished from an
	// explicit false in YAML, so CORS is enabled whenever the section is
	// absent entirely (all fields zero).
	if isZeroCORS(&cfg.Server.CORS) {
		cfg.Server.CORS.Enabled = DefaultCORSEnabled
		cfg.Server.CORS.AllowCredentials = DefaultCORSAllowCredentials
	}
	if len(cfg.Server.CORS.AllowedOrigins) == 0 {
		cfg.Server.CORS.AllowedOrigins = []string{"*"}
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		cfg.Server.CORS.AllowedMethods = DefaultCORSAllowedMethods()
	}
	if len(cfg.Server.CORS.AllowedHeaders) == 0 {
		cfg.Server.CORS.AllowedHeaders = DefaultCORSAllowedHeaders()
	}
	if len(cfg.Server.CORS.ExposedHeaders) == 0 {
		cfg.Server.CORS.ExposedHeaders = DefaultCORSExposedHeaders()
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}

	// Store
	if cfg.Store.Address == "" {
		cfg.Store.Address = DefaultStoreAddress
	}
	if cfg.Store.DialTimeout == 0 {
		cfg.Store.DialTimeout = DefaultStoreDialTimeout
	}

	// Audit
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = DefaultAuditSQLitePath
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = DefaultAuditBufferSize
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultAuditPruneSchedule
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}

	// Projects
	for _, p := range cfg.Projects {
		if p == nil {
			continue
		}
		if p.SessionCookie == "" {
			p.SessionCookie = DefaultSessionCookie
		}
		if cb := p.CircuitBreaker; cb != nil {
			if cb.FailureRateThreshold == 0 {
				cb.FailureRateThreshold = DefaultBreakerFailureRateThreshold
			}
			if cb.SlidingWindowSize == 0 {
				cb.SlidingWindowSize = DefaultBreakerSlidingWindowSize
			}
			if cb.WaitDuration == 0 {
				cb.WaitDuration = DefaultBreakerWaitDuration
			}
			if cb.PermittedNumberOfCallsInHalfOpenState == 0 {
				cb.PermittedNumberOfCallsInHalfOpenState = DefaultBreakerHalfOpenCalls
			}
		}
		if tl := p.TimeLimiter; tl != nil && tl.Timeout == 0 {
			tl.Timeout = cfg.Gateway.GlobalTimeout
		}
	}
}

func isZeroCORS(c *CORSConfig) bool {
	return !c.Enabled &&
		len(c.AllowedOrigins) == 0 &&
		len(c.AllowedMethods) == 0 &&
		len(c.AllowedHeaders) == 0 &&
		len(c.ExposedHeaders) == 0 &&
		c.MaxAge == 0 &&
		!c.AllowCredentials
}
