package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"myinfra-hq/smartgate/internal/gatewaytest"
	"myinfra-hq/smartgate/pkg/config"
	"myinfra-hq/smartgate/pkg/gateway"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func tokenProject(t *testing.T, mutate func(*config.ProjectConfig)) *gateway.Project {
	t.Helper()
	cfg := &config.ProjectConfig{
		Prefix:      "/shop",
		TargetURL:   "http://upstream.local",
		AuthType:    config.AuthTypeToken,
		TokenSecret: base64.StdEncoding.EncodeToString(testSecret),
	}
	if mutate != nil {
		mutate(cfg)
	}
	p, err := gateway.NewProject(cfg)
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	return p
}

func signHS256(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return token
}

func TestAuthenticate_TokenFromHeader(t *testing.T) {
	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, nil)

	token := signHS256(t, testSecret, jwt.MapClaims{
		"sub":  "u1",
		"role": "ROLE_USER",
		"plan": "PRO",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, ok := a.Authenticate(context.Background(), r, p)
	if !ok {
		t.Fatal("Authenticate = absent, want identity")
	}
	want := gateway.Identity{ID: "u1", Role: "ROLE_USER", Plan: "PRO"}
	if identity != want {
		t.Errorf("identity = %+v, want %+v", identity, want)
	}
}

func TestAuthenticate_PlanDefaultsToFree(t *testing.T) {
	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, nil)

	token := signHS256(t, testSecret, jwt.MapClaims{"sub": "u1", "role": "ROLE_USER"})

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, ok := a.Authenticate(context.Background(), r, p)
	if !ok {
		t.Fatal("Authenticate = absent, want identity")
	}
	if identity.Plan != "FREE" {
		t.Errorf("plan = %q, want FREE", identity.Plan)
	}
}

func TestAuthenticate_TokenFromCookie(t *testing.T) {
	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, func(cfg *config.ProjectConfig) {
		cfg.TokenCookie = "ACCESS_TOKEN"
	})

	token := signHS256(t, testSecret, jwt.MapClaims{"sub": "u2", "role": "ROLE_USER"})

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: token})

	identity, ok := a.Authenticate(context.Background(), r, p)
	if !ok {
		t.Fatal("Authenticate = absent, want identity")
	}
	if identity.ID != "u2" {
		t.Errorf("id = %q, want u2", identity.ID)
	}
}

func TestAuthenticate_HeaderWinsOverCookie(t *testing.T) {
	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, func(cfg *config.ProjectConfig) {
		cfg.TokenCookie = "ACCESS_TOKEN"
	})

	headerToken := signHS256(t, testSecret, jwt.MapClaims{"sub": "header-user"})
	cookieToken := signHS256(t, testSecret, jwt.MapClaims{"sub": "cookie-user"})

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.Header.Set("Authorization", "Bearer "+headerToken)
	r.AddCookie(&http.Cookie{Name: "ACCESS_TOKEN", Value: cookieToken})

	identity, _ := a.Authenticate(context.Background(), r, p)
	if identity.ID != "header-user" {
		t.Errorf("id = %q, want header-user", identity.ID)
	}
}

func TestAuthenticate_InvalidTokenIsAbsent(t *testing.T) {
	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong key", signHS256(t, []byte("anotherkeyanotherkeyanotherkey12"), jwt.MapClaims{"sub": "u1"})},
		{"expired", signHS256(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)
			if _, ok := a.Authenticate(context.Background(), r, p); ok {
				t.Error("Authenticate accepted an invalid token")
			}
		})
	}
}

func TestAuthenticate_NoCredentialsIsAbsent(t *testing.T) {
	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	if _, ok := a.Authenticate(context.Background(), r, p); ok {
		t.Error("Authenticate with no credentials should be absent")
	}
}

func TestAuthenticate_RS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}

	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, func(cfg *config.ProjectConfig) {
		cfg.TokenPublicKey = base64.StdEncoding.EncodeToString(der)
	})

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "u3", "role": "ROLE_ADMIN",
	}).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, ok := a.Authenticate(context.Background(), r, p)
	if !ok {
		t.Fatal("Authenticate = absent, want identity")
	}
	if identity.ID != "u3" || identity.Role != "ROLE_ADMIN" {
		t.Errorf("identity = %+v", identity)
	}
}

func TestAuthenticate_AsymmetricWinsOverSymmetric(t *testing.T) {
	// When both keys are configured, an HS256 token must be rejected:
	// RS256 verification wins, and accepting HS256 signed with the public
	// key material is a classic downgrade attack.
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}

	a := New(gatewaytest.NewFakeStore(), nil)
	p := tokenProject(t, func(cfg *config.ProjectConfig) {
		cfg.TokenPublicKey = base64.StdEncoding.EncodeToString(der)
	})

	hsToken := signHS256(t, testSecret, jwt.MapClaims{"sub": "u1"})

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.Header.Set("Authorization", "Bearer "+hsToken)

	if _, ok := a.Authenticate(context.Background(), r, p); ok {
		t.Error("HS256 token accepted while RS256 verification is configured")
	}
}

func sessionProject(t *testing.T, cookieName string) *gateway.Project {
	t.Helper()
	cfg := &config.ProjectConfig{
		Prefix:        "/secure",
		TargetURL:     "http://upstream.local",
		AuthType:      config.AuthTypeSession,
		SessionCookie: cookieName,
	}
	p, err := gateway.NewProject(cfg)
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	return p
}

func TestAuthenticate_SessionPresent(t *testing.T) {
	st := gatewaytest.NewFakeStore()
	st.SetKey("spring:session:sessions:abc123")

	a := New(st, nil)
	p := sessionProject(t, "SESSION")

	r := httptest.NewRequest(http.MethodGet, "/secure/x", nil)
	r.AddCookie(&http.Cookie{Name: "SESSION", Value: "abc123"})

	identity, ok := a.Authenticate(context.Background(), r, p)
	if !ok {
		t.Fatal("Authenticate = absent, want session identity")
	}
	want := gateway.Identity{ID: "session-user", Role: "ROLE_USER", Plan: "FREE"}
	if identity != want {
		t.Errorf("identity = %+v, want %+v", identity, want)
	}
}

func TestAuthenticate_SessionAbsent(t *testing.T) {
	st := gatewaytest.NewFakeStore()
	a := New(st, nil)
	p := sessionProject(t, "SESSION")

	t.Run("no cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/secure/x", nil)
		if _, ok := a.Authenticate(context.Background(), r, p); ok {
			t.Error("missing cookie should be absent")
		}
	})

	t.Run("unknown session id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/secure/x", nil)
		r.AddCookie(&http.Cookie{Name: "SESSION", Value: "nope"})
		if _, ok := a.Authenticate(context.Background(), r, p); ok {
			t.Error("unknown session should be absent")
		}
	})
}

func TestAuthenticate_SessionStoreErrorIsAbsent(t *testing.T) {
	st := gatewaytest.NewFakeStore()
	st.Err = context.DeadlineExceeded

	a := New(st, nil)
	p := sessionProject(t, "SESSION")

	r := httptest.NewRequest(http.MethodGet, "/secure/x", nil)
	r.AddCookie(&http.Cookie{Name: "SESSION", Value: "abc123"})

	if _, ok := a.Authenticate(context.Background(), r, p); ok {
		t.Error("store error should degrade to absent, not an identity")
	}
}

func TestAuthenticate_CustomSessionCookieName(t *testing.T) {
	st := gatewaytest.NewFakeStore()
	st.SetKey("spring:session:sessions:zzz")

	a := New(st, nil)
	p := sessionProject(t, "MYSESSION")

	r := httptest.NewRequest(http.MethodGet, "/secure/x", nil)
	r.AddCookie(&http.Cookie{Name: "MYSESSION", Value: "zzz"})

	if _, ok := a.Authenticate(context.Background(), r, p); !ok {
		t.Error("session under custom cookie name not recognized")
	}
}
