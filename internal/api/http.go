package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tejusbharadwaj/pvforecast/internal/metrics"
	"golang.org/x/time/rate"
)

const userAgent = "pvforecast/1.0"

var (
	ErrRequest = errors.New("error making upstream request")
	ErrStatus  = errors.New("error status from upstream service")
)

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// newHTTPClient returns a client that ignores proxy environment variables;
// both upstreams are reached directly.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	return &http.Client{
		Transport: &userAgentTransport{transport: transport, userAgent: userAgent},
		Timeout:   timeout,
	}
}

// ClientOption configures an upstream client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithRateLimit caps outgoing requests at rps per second with the given
// burst. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(o *clientOptions) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func buildOptions(timeout time.Duration, opts []ClientOption) clientOptions {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient(timeout)
	}
	return o
}

// upstream performs rate limited GET requests and returns the body of a 200
// response.
type upstream struct {
	source     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logrus.FieldLogger
}

func (u *upstream) get(ctx context.Context, url string, auth func(*http.Request)) ([]byte, error) {
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequest, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	if auth != nil {
		auth(req)
	}

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(u.source, metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveUpstream(u.source, metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: reading body: %v", ErrRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveUpstream(u.source, metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: got %d", ErrStatus, resp.StatusCode)
	}

	metrics.ObserveUpstream(u.source, metrics.ResultSuccess, time.Since(start))
	u.logger.WithFields(logrus.Fields{
		"source":   u.source,
		"bytes":    len(body),
		"duration": time.Since(start),
	}).Debug("Upstream request completed")
	return body, nil
}
