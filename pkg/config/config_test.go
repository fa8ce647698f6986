package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
server:
  listen_address: "0.0.0.0:9090"
projects:
  shop:
    prefix: /shop
    target_url: http://shop-backend:8000
    auth_type: TOKEN
    token_secret: c2VjcmV0LWtleS1mb3ItdGVzdHM=
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("read timeout = %v, want default", cfg.Server.ReadTimeout)
	}
	if cfg.Store.Address != DefaultStoreAddress {
		t.Errorf("store address = %q, want default", cfg.Store.Address)
	}
	if !cfg.Server.CORS.Enabled {
		t.Error("CORS should default to enabled")
	}
	if !cfg.Server.CORS.AllowCredentials {
		t.Error("CORS should default to credentialed")
	}
	if cfg.Server.CORS.MaxAge != 3600 {
		t.Errorf("CORS max age = %d, want 3600", cfg.Server.CORS.MaxAge)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging defaults = %+v", cfg.Telemetry.Logging)
	}

	shop := cfg.Projects["shop"]
	if shop.SessionCookie != "SESSION" {
		t.Errorf("session cookie = %q, want SESSION", shop.SessionCookie)
	}
}

func TestLoadConfig_FullProject(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
projects:
  api:
    prefix: /api
    target_url: http://api-backend:8000
    auth_type: SESSION
    session_cookie: MYSESSION
    csrf_required: true
    public_paths:
      - /api/health
      - /api/public/**
    rate_limit:
      capacity: 100
      refill_rate: 10
    circuit_breaker:
      failure_rate_threshold: 40
      sliding_window_size: 8
      wait_duration: 30s
      permitted_number_of_calls_in_half_open_state: 2
    time_limiter:
      timeout: 2s
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	api := cfg.Projects["api"]
	if api.AuthType != AuthTypeSession {
		t.Errorf("auth type = %q", api.AuthType)
	}
	if !api.CSRFRequired {
		t.Error("csrf_required not parsed")
	}
	if len(api.PublicPaths) != 2 {
		t.Errorf("public paths = %v", api.PublicPaths)
	}
	if api.RateLimit.Capacity != 100 || api.RateLimit.RefillRate != 10 {
		t.Errorf("rate limit = %+v", api.RateLimit)
	}
	if api.CircuitBreaker.WaitDuration != 30*time.Second {
		t.Errorf("wait duration = %v", api.CircuitBreaker.WaitDuration)
	}
	if api.CircuitBreaker.PermittedNumberOfCallsInHalfOpenState != 2 {
		t.Errorf("half-open calls = %d", api.CircuitBreaker.PermittedNumberOfCallsInHalfOpenState)
	}
	if api.TimeLimiter.Timeout != 2*time.Second {
		t.Errorf("time limiter = %+v", api.TimeLimiter)
	}
}

func TestLoadConfig_BreakerDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
projects:
  svc:
    prefix: /svc
    target_url: http://svc:8000
    auth_type: SESSION
    circuit_breaker:
      sliding_window_size: 4
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	cb := cfg.Projects["svc"].CircuitBreaker
	if cb.FailureRateThreshold != DefaultBreakerFailureRateThreshold {
		t.Errorf("failure rate = %v, want default", cb.FailureRateThreshold)
	}
	if cb.SlidingWindowSize != 4 {
		t.Errorf("window = %d, want 4", cb.SlidingWindowSize)
	}
	if cb.WaitDuration != DefaultBreakerWaitDuration {
		t.Errorf("wait = %v, want default", cb.WaitDuration)
	}
	if cb.PermittedNumberOfCallsInHalfOpenState != DefaultBreakerHalfOpenCalls {
		t.Errorf("half-open calls = %d, want default", cb.PermittedNumberOfCallsInHalfOpenState)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadConfig succeeded on a missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "projects: [not: a: map")); err == nil {
		t.Error("LoadConfig succeeded on invalid YAML")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			"prefix without slash",
			`
projects:
  bad:
    prefix: shop
    target_url: http://b:1
    auth_type: SESSION
`,
			"must begin with /",
		},
		{
			"duplicate prefixes",
			`
projects:
  one:
    prefix: /same
    target_url: http://b:1
    auth_type: SESSION
  two:
    prefix: /same
    target_url: http://b:2
    auth_type: SESSION
`,
			"duplicate prefix",
		},
		{
			"bad auth type",
			`
projects:
  bad:
    prefix: /x
    target_url: http://b:1
    auth_type: BASIC
`,
			"must be TOKEN or SESSION",
		},
		{
			"token without key material",
			`
projects:
  bad:
    prefix: /x
    target_url: http://b:1
    auth_type: TOKEN
`,
			"token_secret or token_public_key",
		},
		{
			"relative target url",
			`
projects:
  bad:
    prefix: /x
    target_url: backend
    auth_type: SESSION
`,
			"absolute URL",
		},
		{
			"zero capacity",
			`
projects:
  bad:
    prefix: /x
    target_url: http://b:1
    auth_type: SESSION
    rate_limit:
      capacity: 0
      refill_rate: 1
`,
			"capacity",
		},
		{
			"threshold out of range",
			`
projects:
  bad:
    prefix: /x
    target_url: http://b:1
    auth_type: SESSION
    circuit_breaker:
      failure_rate_threshold: 150
`,
			"[0,100]",
		},
		{
			"bad public path pattern",
			`
projects:
  bad:
    prefix: /x
    target_url: http://b:1
    auth_type: SESSION
    public_paths:
      - "[oops"
`,
			"invalid pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("LoadConfig succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	t.Setenv("SMARTGATE_SERVER_LISTEN_ADDRESS", "0.0.0.0:7777")
	t.Setenv("SMARTGATE_STORE_ADDRESS", "redis.internal:6379")
	t.Setenv("SMARTGATE_LOG_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7777" {
		t.Errorf("listen address = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Store.Address != "redis.internal:6379" {
		t.Errorf("store address = %q, want env override", cfg.Store.Address)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Telemetry.Logging.Level)
	}
}
