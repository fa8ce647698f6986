package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"myinfra-hq/smartgate/internal/gatewaytest"
	"myinfra-hq/smartgate/pkg/config"
	"myinfra-hq/smartgate/pkg/gateway"
)

func testProject(t *testing.T, prefix, targetURL string) *gateway.Project {
	t.Helper()
	p, err := gateway.NewProject(&config.ProjectConfig{
		Prefix:    prefix,
		TargetURL: targetURL,
		AuthType:  config.AuthTypeSession,
	})
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	return p
}

var testIdentity = gateway.Identity{ID: "u1", Role: "ROLE_USER", Plan: "PRO"}

func TestForward_StripsPrefixAndKeepsQuery(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()

	f := New(nil)
	p := testProject(t, "/shop", upstream.URL())

	r := httptest.NewRequest(http.MethodGet, "/shop/items/42?page=2&sort=asc", nil)
	rec := httptest.NewRecorder()

	if err := f.Forward(rec, r, p, testIdentity); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	got := upstream.LastRequest()
	if got == nil {
		t.Fatal("upstream received nothing")
	}
	if got.Path != "/items/42" {
		t.Errorf("upstream path = %q, want /items/42", got.Path)
	}
	if got.Query != "page=2&sort=asc" {
		t.Errorf("upstream query = %q, want page=2&sort=asc", got.Query)
	}
}

func TestForward_BarePrefixBecomesRoot(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()

	f := New(nil)
	p := testProject(t, "/shop", upstream.URL())

	r := httptest.NewRequest(http.MethodGet, "/shop", nil)
	rec := httptest.NewRecorder()

	if err := f.Forward(rec, r, p, testIdentity); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if got := upstream.LastRequest().Path; got != "/" {
		t.Errorf("upstream path = %q, want /", got)
	}
}

func TestForward_InjectsIdentityHeaders(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()

	f := New(nil)
	p := testProject(t, "/shop", upstream.URL())

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	// A caller trying to smuggle its own identity.
	r.Header.Set("X-User-Id", "attacker")
	r.Header.Set("X-User-Role", "ROLE_ADMIN")
	r.Header.Set("X-User-Extra", "boo")

	rec := httptest.NewRecorder()
	if err := f.Forward(rec, r, p, testIdentity); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	h := upstream.LastRequest().Header
	if got := h.Get("X-User-Id"); got != "u1" {
		t.Errorf("X-User-Id = %q, want u1", got)
	}
	if got := h.Get("X-User-Role"); got != "ROLE_USER" {
		t.Errorf("X-User-Role = %q, want ROLE_USER", got)
	}
	if got := h.Get("X-User-Plan"); got != "PRO" {
		t.Errorf("X-User-Plan = %q, want PRO", got)
	}
	if got := h.Get("X-User-Extra"); got != "" {
		t.Errorf("X-User-Extra leaked through: %q", got)
	}
}

func TestForward_FiltersHopHeaders(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()

	f := New(nil)
	p := testProject(t, "/shop", upstream.URL())

	r := httptest.NewRequest(http.MethodGet, "/shop/items", nil)
	r.Header.Set("Connection", "keep-alive")
	r.Header.Set("Keep-Alive", "timeout=5")
	r.Header.Set("Proxy-Authorization", "Basic xyz")
	r.Header.Set("Proxy-Authenticate", "Basic")
	r.Header.Set("Transfer-Encoding", "chunked")
	r.Header.Set("Authorization", "Bearer tok")
	r.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	if err := f.Forward(rec, r, p, testIdentity); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	h := upstream.LastRequest().Header
	for _, name := range []string{"Connection", "Keep-Alive", "Proxy-Authorization", "Proxy-Authenticate", "Transfer-Encoding"} {
		if got := h.Get(name); got != "" {
			t.Errorf("header %s leaked through: %q", name, got)
		}
	}
	if got := h.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want passthrough", got)
	}
	if got := h.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want passthrough", got)
	}
}

func TestForward_StreamsRequestBody(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()

	f := New(nil)
	p := testProject(t, "/shop", upstream.URL())

	body := strings.Repeat("payload-", 1024)
	r := httptest.NewRequest(http.MethodPost, "/shop/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()

	if err := f.Forward(rec, r, p, testIdentity); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	got := upstream.LastRequest()
	if got.Method != http.MethodPost {
		t.Errorf("method = %q, want POST", got.Method)
	}
	if got.Body != body {
		t.Errorf("upstream body length = %d, want %d", len(got.Body), len(body))
	}
}

func TestForward_MirrorsResponse(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()
	upstream.Respond(http.StatusCreated, `{"id":7}`)
	upstream.SetHeader("X-Backend", "orders")
	upstream.SetHeader("X-User-Internal", "leak")

	f := New(nil)
	p := testProject(t, "/shop", upstream.URL())

	r := httptest.NewRequest(http.MethodPost, "/shop/orders", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	if err := f.Forward(rec, r, p, testIdentity); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Body.String() != `{"id":7}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("X-Backend"); got != "orders" {
		t.Errorf("X-Backend = %q, want orders", got)
	}
	if got := rec.Header().Get("X-User-Internal"); got != "" {
		t.Errorf("X-User-Internal leaked into response: %q", got)
	}
}

func TestForward_Upstream5xxIsMirroredAndReported(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()
	upstream.Respond(http.StatusInternalServerError, "backend broke")

	f := New(nil)
	p := testProject(t, "/svc", upstream.URL())

	r := httptest.NewRequest(http.MethodGet, "/svc/x", nil)
	rec := httptest.NewRecorder()

	err := f.Forward(rec, r, p, testIdentity)
	if err == nil {
		t.Fatal("Forward returned nil for a 5xx, want an error for the breaker")
	}

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gateway.KindUpstreamServerError {
		t.Errorf("error = %v, want KindUpstreamServerError", err)
	}

	// The client still sees the mirrored upstream response.
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Body.String() != "backend broke" {
		t.Errorf("body = %q, want mirrored upstream body", rec.Body.String())
	}
}

func TestForward_ConnectionRefused(t *testing.T) {
	f := New(nil)
	// Port 1 on localhost refuses connections.
	p := testProject(t, "/svc", "http://127.0.0.1:1")

	r := httptest.NewRequest(http.MethodGet, "/svc/x", nil)
	rec := httptest.NewRecorder()

	err := f.Forward(rec, r, p, testIdentity)

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gateway.KindUpstreamUnreachable {
		t.Errorf("error = %v, want KindUpstreamUnreachable", err)
	}
}

func TestForward_DeadlineExceeded(t *testing.T) {
	upstream := gatewaytest.NewUpstream()
	defer upstream.Close()
	upstream.SetDelay(time.Second)

	f := New(nil)
	p := testProject(t, "/slow", upstream.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r := httptest.NewRequest(http.MethodGet, "/slow/x", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	err := f.Forward(rec, r, p, testIdentity)

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gateway.KindUpstreamTimeout {
		t.Errorf("error = %v, want KindUpstreamTimeout", err)
	}
}

func TestForward_IncompleteConfig(t *testing.T) {
	f := New(nil)

	p := &gateway.Project{Config: &config.ProjectConfig{Prefix: "", TargetURL: ""}}

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	err := f.Forward(rec, r, p, testIdentity)

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Kind != gateway.KindConfigInvalid {
		t.Errorf("error = %v, want KindConfigInvalid", err)
	}
}

func TestUpstreamURL(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		path    string
		query   string
		prefix  string
		want    string
		wantErr bool
	}{
		{"basic", "http://backend:9000", "/shop/items", "", "/shop", "http://backend:9000/items", false},
		{"with query", "http://backend:9000", "/shop/items", "a=1&b=2", "/shop", "http://backend:9000/items?a=1&b=2", false},
		{"bare prefix", "http://backend:9000", "/shop", "", "/shop", "http://backend:9000/", false},
		{"relative target", "backend", "/shop/items", "", "/shop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &url.URL{Path: tt.path, RawQuery: tt.query}
			got, err := upstreamURL(tt.target, u, tt.prefix)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("upstreamURL = %q, want %q", got, tt.want)
			}
		})
	}
}
