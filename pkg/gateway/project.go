package gateway

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/gobwas/glob"

	"myinfra-hq/smartgate/pkg/config"
)

// Project is the runtime form of a configured project. It carries the
// immutable configuration plus material compiled once at load time: the
// decoded HMAC secret, the parsed RSA public key, and the compiled
// public-path patterns. Projects are never mutated after construction;
// configuration reloads build a fresh Registry.
type Project struct {
	// Config is the immutable project configuration.
	Config *config.ProjectConfig

	hmacKey     []byte
	rsaKey      *rsa.PublicKey
	publicPaths []glob.Glob
}

// NewProject compiles a project configuration into its runtime form.
func NewProject(cfg *config.ProjectConfig) (*Project, error) {
	p := &Project{Config: cfg}

	if cfg.TokenSecret != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.TokenSecret)
		if err != nil {
			return nil, fmt.Errorf("project %q: invalid token secret: %w", cfg.Prefix, err)
		}
		p.hmacKey = key
	}

	if cfg.TokenPublicKey != "" {
		der, err := base64.StdEncoding.DecodeString(cfg.TokenPublicKey)
		if err != nil {
			return nil, fmt.Errorf("project %q: invalid token public key: %w", cfg.Prefix, err)
		}
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("project %q: failed to parse public key: %w", cfg.Prefix, err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("project %q: public key is %T, want RSA", cfg.Prefix, pub)
		}
		p.rsaKey = rsaPub
	}

	for _, pattern := range cfg.PublicPaths {
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("project %q: invalid public path pattern %q: %w", cfg.Prefix, pattern, err)
		}
		p.publicPaths = append(p.publicPaths, g)
	}

	return p, nil
}

// Prefix returns the project's routing prefix.
func (p *Project) Prefix() string {
	return p.Config.Prefix
}

// HMACKey returns the decoded symmetric token secret, or nil.
func (p *Project) HMACKey() []byte {
	return p.hmacKey
}

// RSAKey returns the parsed RSA public key, or nil.
func (p *Project) RSAKey() *rsa.PublicKey {
	return p.rsaKey
}

// IsPublicPath reports whether the request path matches one of the
// project's Ant-style public path patterns ("*" within a segment, "**"
// across segments, "?" for a single character).
func (p *Project) IsPublicPath(path string) bool {
	for _, g := range p.publicPaths {
		if g.Match(path) {
			return true
		}
	}
	return false
}
