package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"myinfra-hq/smartgate/pkg/gateway"
)

// connectTimeout is the fixed TCP connect timeout for upstream dials.
// The full-response deadline (the project's time limiter, else the
// gateway-wide global timeout) is applied by the pipeline through the
// request context.
const connectTimeout = 3 * time.Second

// Forwarder builds the upstream request, streams the body up, and streams
// the response back down. One Forwarder (and its connection pool) is
// shared across all requests and projects.
type Forwarder struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a forwarder with a pooled transport.
func New(logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			// Redirects are the client's business, not the gateway's.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "proxy"),
	}
}

// Forward proxies the request to the project's upstream and writes the
// upstream response to w. The status code and body are mirrored; request
// and response headers are filtered per the hop-by-hop and identity
// rules. The request context governs cancellation and the per-project
// deadline.
//
// A non-nil return value is always a classified *gateway.Error. An
// upstream 5xx is still streamed to the client; the returned error exists
// so the circuit breaker observes the failure.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, p *gateway.Project, identity gateway.Identity) error {
	prefix := p.Config.Prefix
	targetURL := p.Config.TargetURL
	if prefix == "" || targetURL == "" {
		return gateway.ErrConfigInvalid("Project configuration is incomplete.")
	}

	target, err := upstreamURL(targetURL, r.URL, prefix)
	if err != nil {
		f.logger.Error("invalid upstream URI", "project", prefix, "error", err)
		return gateway.ErrConfigInvalid("Invalid upstream target.")
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	f.logger.Debug("proxying request", "path", r.URL.Path, "target", target)

	upReq, err := http.NewRequestWithContext(r.Context(), method, target, r.Body)
	if err != nil {
		return gateway.ErrInternal(err)
	}
	// Preserve the inbound framing so bodies stream without buffering:
	// a known length is forwarded as-is, everything else goes chunked.
	upReq.ContentLength = r.ContentLength

	copyFiltered(upReq.Header, r.Header)
	upReq.Header.Set("X-User-Id", identity.ID)
	upReq.Header.Set("X-User-Role", identity.Role)
	upReq.Header.Set("X-User-Plan", identity.Plan)

	resp, err := f.client.Do(upReq)
	if err != nil {
		return f.classifyTransport(r.Context(), err)
	}
	defer resp.Body.Close()

	copyFiltered(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if err := stream(w, resp.Body); err != nil {
		// The response is already committed; the pipeline only records
		// the failure against the breaker.
		return f.classifyTransport(r.Context(), err)
	}

	if resp.StatusCode >= 500 {
		return gateway.ErrUpstreamServer(resp.StatusCode)
	}
	return nil
}

// classifyTransport maps a transport-level failure to the gateway error
// taxonomy: deadline hits become 504, client cancellation becomes an
// internal error, and everything else that broke the connection becomes
// 502.
func (f *Forwarder) classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return gateway.ErrUpstreamTimeout(err)
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing to write, but the breaker still
		// should not count this against the upstream.
		return gateway.ErrInternal(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return gateway.ErrUpstreamTimeout(err)
	}
	return gateway.ErrUpstreamUnreachable(err)
}

// upstreamURL composes the upstream URI: the target base, the request
// path with the project prefix stripped, and the original raw query.
func upstreamURL(targetURL string, reqURL *url.URL, prefix string) (string, error) {
	downstream := strings.TrimPrefix(reqURL.Path, prefix)
	if downstream == "" {
		downstream = "/"
	}

	raw := targetURL + downstream
	if reqURL.RawQuery != "" {
		raw += "?" + reqURL.RawQuery
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", errors.New("upstream URI is not absolute")
	}
	return u.String(), nil
}

// hopHeaders are never forwarded in either direction. The identity
// headers are additionally stripped from the inbound request so a caller
// can never smuggle its own X-User-* values past the gateway.
var hopHeaders = map[string]struct{}{
	"Host":                {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Transfer-Encoding":   {},
	"Content-Length":      {},
	"Proxy-Authorization": {},
	"Proxy-Authenticate":  {},
}

// copyFiltered copies src headers into dst, dropping hop-by-hop headers
// and anything in the reserved X-User- namespace.
func copyFiltered(dst, src http.Header) {
	for key, values := range src {
		if ignoredHeader(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// ignoredHeader reports whether the header must not cross the gateway.
func ignoredHeader(key string) bool {
	canonical := http.CanonicalHeaderKey(key)
	if _, ok := hopHeaders[canonical]; ok {
		return true
	}
	return strings.HasPrefix(canonical, "X-User-")
}

// stream copies the upstream body to the client, flushing as data
// arrives so streaming responses are not held back by buffering.
func stream(w http.ResponseWriter, body io.Reader) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
