package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"myinfra-hq/smartgate/pkg/config"
	"myinfra-hq/smartgate/pkg/gateway"
	"myinfra-hq/smartgate/pkg/store"
)

// sessionKeyPrefix is the store key namespace for server-held sessions.
// Sessions are written by the account service; the gateway only tests
// for existence.
const sessionKeyPrefix = "spring:session:sessions:"

// planDefault is assumed when a token omits the plan claim.
const planDefault = "FREE"

// Authenticator validates bearer tokens and server-held sessions against
// a project's configuration. It never fails a request itself: an invalid
// token is indistinguishable from a missing one at this stage, and the
// pipeline decides between the anonymous identity and a 401.
type Authenticator struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an authenticator backed by the given store.
func New(st store.Store, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		store:  st,
		logger: logger.With("component", "auth"),
	}
}

// Authenticate extracts and validates credentials from the request per
// the project's auth type. It returns the identity and true on success,
// or the zero identity and false when no identity could be established.
// It reads headers and cookies only, never the body.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, p *gateway.Project) (gateway.Identity, bool) {
	switch p.Config.AuthType {
	case config.AuthTypeToken:
		return a.authenticateToken(r, p)
	case config.AuthTypeSession:
		return a.authenticateSession(ctx, r, p)
	default:
		return gateway.Identity{}, false
	}
}

// authenticateToken verifies a signed bearer token. The token comes from
// the Authorization header first, then from the configured cookie. When
// the project carries a public key, RS256 verification wins over HS256.
func (a *Authenticator) authenticateToken(r *http.Request, p *gateway.Project) (gateway.Identity, bool) {
	raw := extractToken(r, p.Config.TokenCookie)
	if raw == "" {
		return gateway.Identity{}, false
	}

	var keyFunc jwt.Keyfunc
	var methods []string

	switch {
	case p.RSAKey() != nil:
		keyFunc = func(*jwt.Token) (interface{}, error) { return p.RSAKey(), nil }
		methods = []string{"RS256"}
	case p.HMACKey() != nil:
		keyFunc = func(*jwt.Token) (interface{}, error) { return p.HMACKey(), nil }
		methods = []string{"HS256"}
	default:
		a.logger.Error("no token key configured", "project", p.Prefix())
		return gateway.Identity{}, false
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, keyFunc, jwt.WithValidMethods(methods))
	if err != nil {
		a.logger.Warn("token validation failed", "project", p.Prefix(), "error", err)
		return gateway.Identity{}, false
	}

	id := gateway.Identity{
		ID:   stringClaim(claims, "sub"),
		Role: stringClaim(claims, "role"),
		Plan: stringClaim(claims, "plan"),
	}
	if id.Plan == "" {
		id.Plan = planDefault
	}
	return id, true
}

// authenticateSession tests the session cookie against the store. The
// mere presence of the session key is what makes a session valid; store
// errors are treated as an absent session.
func (a *Authenticator) authenticateSession(ctx context.Context, r *http.Request, p *gateway.Project) (gateway.Identity, bool) {
	cookieName := p.Config.SessionCookie
	if cookieName == "" {
		cookieName = config.DefaultSessionCookie
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return gateway.Identity{}, false
	}

	exists, err := a.store.Exists(ctx, sessionKeyPrefix+cookie.Value)
	if err != nil {
		a.logger.Warn("session lookup failed", "project", p.Prefix(), "error", err)
		return gateway.Identity{}, false
	}
	if !exists {
		return gateway.Identity{}, false
	}

	return gateway.Identity{ID: "session-user", Role: "ROLE_USER", Plan: planDefault}, true
}

// extractToken pulls the raw token from the Authorization header, falling
// back to the configured cookie.
func extractToken(r *http.Request, cookieName string) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if cookieName != "" {
		if cookie, err := r.Cookie(cookieName); err == nil {
			return cookie.Value
		}
	}

	return ""
}

// stringClaim returns the named claim as a string, or "".
func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}
