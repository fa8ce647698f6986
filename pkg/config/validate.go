package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "projects.shop.prefix").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any rules fail. All validation errors are collected and returned
// together rather than failing on the first.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateProjects(cfg.Projects)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError

	if s.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if s.TLS.Enabled {
		if s.TLS.CertFile == "" {
			errs = append(errs, FieldError{"server.tls.cert_file", "required when TLS is enabled"})
		}
		if s.TLS.KeyFile == "" {
			errs = append(errs, FieldError{"server.tls.key_file", "required when TLS is enabled"})
		}
	}
	return errs
}

func validateStore(s *StoreConfig) []FieldError {
	var errs []FieldError
	if s.Address == "" {
		errs = append(errs, FieldError{"store.address", "must not be empty"})
	}
	if s.DB < 0 {
		errs = append(errs, FieldError{"store.db", "must not be negative"})
	}
	return errs
}

func validateAudit(a *AuditConfig) []FieldError {
	var errs []FieldError
	if !a.Enabled {
		return nil
	}
	if a.SQLitePath == "" {
		errs = append(errs, FieldError{"audit.sqlite_path", "must not be empty"})
	}
	if a.RetentionDays < 0 {
		errs = append(errs, FieldError{"audit.retention_days", "must not be negative"})
	}
	if a.PruneSchedule != "" {
		if _, err := cron.ParseStandard(a.PruneSchedule); err != nil {
			errs = append(errs, FieldError{"audit.prune_schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch t.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("must be one of debug, info, warn, error; got %q", t.Logging.Level)})
	}
	switch t.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("must be json or text; got %q", t.Logging.Format)})
	}
	return errs
}

func validateProjects(projects map[string]*ProjectConfig) []FieldError {
	var errs []FieldError

	// Prefixes must be pairwise distinct across projects; resolution picks
	// the longest matching prefix to disambiguate nested configurations.
	seen := make(map[string]string, len(projects))

	for name, p := range projects {
		field := func(f string) string { return fmt.Sprintf("projects.%s.%s", name, f) }

		if p == nil {
			errs = append(errs, FieldError{fmt.Sprintf("projects.%s", name), "must not be empty"})
			continue
		}

		if p.Prefix == "" {
			errs = append(errs, FieldError{field("prefix"), "must not be empty"})
		} else {
			if !strings.HasPrefix(p.Prefix, "/") {
				errs = append(errs, FieldError{field("prefix"), "must begin with /"})
			}
			if other, dup := seen[p.Prefix]; dup {
				errs = append(errs, FieldError{field("prefix"),
					fmt.Sprintf("duplicate prefix %q, already used by project %q", p.Prefix, other)})
			}
			seen[p.Prefix] = name
		}

		if p.TargetURL == "" {
			errs = append(errs, FieldError{field("target_url"), "must not be empty"})
		} else if u, err := url.Parse(p.TargetURL); err != nil || !u.IsAbs() || u.Host == "" {
			errs = append(errs, FieldError{field("target_url"),
				fmt.Sprintf("must be an absolute URL; got %q", p.TargetURL)})
		}

		switch p.AuthType {
		case AuthTypeToken, AuthTypeSession:
		default:
			errs = append(errs, FieldError{field("auth_type"),
				fmt.Sprintf("must be TOKEN or SESSION; got %q", p.AuthType)})
		}

		if p.AuthType == AuthTypeToken && p.TokenSecret == "" && p.TokenPublicKey == "" {
			errs = append(errs, FieldError{field("auth_type"),
				"TOKEN requires token_secret or token_public_key"})
		}
		if p.TokenSecret != "" {
			if _, err := base64.StdEncoding.DecodeString(p.TokenSecret); err != nil {
				errs = append(errs, FieldError{field("token_secret"), "must be valid base64"})
			}
		}
		if p.TokenPublicKey != "" {
			if _, err := base64.StdEncoding.DecodeString(p.TokenPublicKey); err != nil {
				errs = append(errs, FieldError{field("token_public_key"), "must be valid base64"})
			}
		}

		for i, pattern := range p.PublicPaths {
			if strings.TrimSpace(pattern) == "" {
				errs = append(errs, FieldError{fmt.Sprintf("%s[%d]", field("public_paths"), i),
					"must not be blank"})
				continue
			}
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, FieldError{fmt.Sprintf("%s[%d]", field("public_paths"), i),
					fmt.Sprintf("invalid pattern %q: %v", pattern, err)})
			}
		}

		if rl := p.RateLimit; rl != nil {
			if rl.Capacity < 1 {
				errs = append(errs, FieldError{field("rate_limit.capacity"), "must be >= 1"})
			}
			if rl.RefillRate < 0 {
				errs = append(errs, FieldError{field("rate_limit.refill_rate"), "must not be negative"})
			}
		}

		if cb := p.CircuitBreaker; cb != nil {
			if cb.FailureRateThreshold < 0 || cb.FailureRateThreshold > 100 {
				errs = append(errs, FieldError{field("circuit_breaker.failure_rate_threshold"),
					"must be within [0,100]"})
			}
			if cb.SlidingWindowSize < 1 {
				errs = append(errs, FieldError{field("circuit_breaker.sliding_window_size"), "must be >= 1"})
			}
			if cb.WaitDuration < 0 {
				errs = append(errs, FieldError{field("circuit_breaker.wait_duration"), "must not be negative"})
			}
			if cb.PermittedNumberOfCallsInHalfOpenState < 1 {
				errs = append(errs, FieldError{field("circuit_breaker.permitted_number_of_calls_in_half_open_state"),
					"must be >= 1"})
			}
		}

		if tl := p.TimeLimiter; tl != nil && tl.Timeout < 0 {
			errs = append(errs, FieldError{field("time_limiter.timeout"), "must not be negative"})
		}
	}

	return errs
}
