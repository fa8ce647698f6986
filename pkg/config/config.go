package config

import "time"

// Config is the root configuration structure for Smartgate.
// It contains the HTTP server settings, gateway-wide options, the shared
// key-value store connection, the audit log, telemetry, and the set of
// configured projects keyed by name.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, TLS, and CORS settings.
	Server ServerConfig `yaml:"server"`

	// Gateway contains gateway-wide options that apply across projects.
	Gateway GatewayConfig `yaml:"gateway"`

	// Store contains connection settings for the shared key-value store
	// used by session authentication and the distributed rate limiter.
	Store StoreConfig `yaml:"store"`

	// Audit contains configuration for the decision audit log.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Projects contains the configured upstream projects. Keys are
	// human-readable project names (e.g., "shop"); routing is done by
	// each project's path prefix, not by the map key.
	Projects map[string]*ProjectConfig `yaml:"projects"`
}

// ServerConfig contains configuration for the ingress HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. An unset or zero value takes the default.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero means no timeout; proxied responses stream for as long
	// as the upstream keeps sending. Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers. Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS contains TLS listener configuration.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains TLS listener configuration.
type TLSConfig struct {
	// Enabled controls whether the server terminates TLS itself.
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded server certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`
}

// CORSConfig contains CORS configuration for the front filter.
// The filter runs before project resolution and answers preflight
// OPTIONS requests directly.
type CORSConfig struct {
	// Enabled controls whether CORS handling is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. Use ["*"] to allow all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: GET, POST, PUT, DELETE, PATCH, OPTIONS
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of response headers exposed to browsers.
	// Default: X-User-Id, X-User-Role, X-User-Plan
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds. Default: 3600
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentialed requests are allowed.
	// Default: true
	AllowCredentials bool `yaml:"allow_credentials"`
}

// GatewayConfig contains gateway-wide options.
type GatewayConfig struct {
	// GlobalTimeout is the default upstream response deadline applied to
	// projects that do not configure their own time limiter. Zero means
	// no wall-clock cap beyond the circuit breaker's own policy.
	GlobalTimeout time.Duration `yaml:"global_timeout"`
}

// StoreConfig contains connection settings for the key-value store.
type StoreConfig struct {
	// Address is the "host:port" of the store. Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password is the optional store password.
	Password string `yaml:"password"`

	// DB is the logical database number. Default: 0
	DB int `yaml:"db"`

	// DialTimeout bounds establishing a new store connection. Default: 5s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// AuditConfig contains configuration for the decision audit log.
// Terminal gateway decisions (401, 403, 404, 429, 5xx generated by the
// gateway) are recorded asynchronously; audit failures never affect the
// client response.
type AuditConfig struct {
	// Enabled controls whether decisions are recorded. Default: false
	Enabled bool `yaml:"enabled"`

	// SQLitePath is the path to the SQLite database file.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BufferSize is the async write buffer size. Records are dropped when
	// the buffer is full. Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// RetentionDays is how long records are kept before pruning.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM). An empty value takes the default.
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace. Default: "smartgate"
	Namespace string `yaml:"namespace"`

	// Path is the HTTP path the metrics handler is mounted on.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// AuthType selects the authentication mechanism for a project.
type AuthType string

const (
	// AuthTypeToken authenticates via a signed bearer token (HS256 or RS256).
	AuthTypeToken AuthType = "TOKEN"

	// AuthTypeSession authenticates via a server-held session looked up in
	// the key-value store.
	AuthTypeSession AuthType = "SESSION"
)

// ProjectConfig describes one configured upstream project. Values are
// immutable after load; configuration reloads build a fresh snapshot
// rather than mutating projects seen by in-flight requests.
type ProjectConfig struct {
	// Prefix is the non-empty URL path prefix beginning with "/" that
	// uniquely identifies the project. It is used both for routing and as
	// the circuit breaker name.
	Prefix string `yaml:"prefix"`

	// TargetURL is the absolute upstream base URL. A trailing slash is
	// not required.
	TargetURL string `yaml:"target_url"`

	// AuthType is TOKEN or SESSION.
	AuthType AuthType `yaml:"auth_type"`

	// TokenSecret is the base64-encoded symmetric HMAC secret for HS256
	// verification. Optional.
	TokenSecret string `yaml:"token_secret"`

	// TokenPublicKey is the base64-encoded X.509 (SubjectPublicKeyInfo)
	// RSA public key for RS256 verification. Optional. If both TokenSecret
	// and TokenPublicKey are set, asymmetric verification wins.
	TokenPublicKey string `yaml:"token_public_key"`

	// TokenCookie is an optional cookie name to read the token from when
	// the Authorization header is absent.
	TokenCookie string `yaml:"token_cookie"`

	// SessionCookie is the cookie holding the session id.
	// Default: "SESSION"
	SessionCookie string `yaml:"session_cookie"`

	// CSRFRequired enforces the presence of an X-XSRF-TOKEN header on
	// write methods (POST, PUT, PATCH, DELETE).
	CSRFRequired bool `yaml:"csrf_required"`

	// PublicPaths is a list of Ant-style glob patterns ("*", "**", "?")
	// matched against the full request path. Matched paths are admitted
	// with the anonymous identity when authentication yields nothing.
	PublicPaths []string `yaml:"public_paths"`

	// RateLimit enables distributed token-bucket rate limiting for the
	// project when set.
	RateLimit *RateLimitConfig `yaml:"rate_limit"`

	// CircuitBreaker overrides the default circuit breaker settings for
	// the project's upstream.
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`

	// TimeLimiter bounds the upstream call wall-clock time, separate from
	// the fixed TCP connect timeout.
	TimeLimiter *TimeLimiterConfig `yaml:"time_limiter"`
}

// RateLimitConfig describes a token bucket in tokens-per-second.
type RateLimitConfig struct {
	// Capacity is the maximum burst size. Must be >= 1.
	Capacity int64 `yaml:"capacity"`

	// RefillRate is the number of tokens added per second. A refill rate
	// of zero gives a fixed budget of Capacity requests per key lifetime.
	RefillRate float64 `yaml:"refill_rate"`
}

// CircuitBreakerConfig describes a count-based sliding window breaker.
type CircuitBreakerConfig struct {
	// FailureRateThreshold is the failure percentage in [0,100] at which
	// the breaker opens. Default: 50
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`

	// SlidingWindowSize is the number of terminal outcomes considered.
	// Must be >= 1. Default: 10
	SlidingWindowSize int `yaml:"sliding_window_size"`

	// WaitDuration is how long the breaker stays open before probing.
	// Default: 10s
	WaitDuration time.Duration `yaml:"wait_duration"`

	// PermittedNumberOfCallsInHalfOpenState is the number of concurrent
	// trial calls allowed while half-open. Must be >= 1. Default: 3
	PermittedNumberOfCallsInHalfOpenState int `yaml:"permitted_number_of_calls_in_half_open_state"`
}

// TimeLimiterConfig bounds the upstream response time for a project.
type TimeLimiterConfig struct {
	// Timeout is the full-response deadline for the upstream call.
	Timeout time.Duration `yaml:"timeout"`

	// CancelRunningFuture is accepted for configuration compatibility and
	// is not read: when the deadline fires, the in-flight upstream request
	// is always torn down through the request context.
	CancelRunningFuture bool `yaml:"cancel_running_future"`
}
