package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/okian/gitlytix/internal/domain/scoring"
	"github.com/okian/gitlytix/pkg/metrics"
)

// endpoint describes where a remote gitlytix API publishes one metric.
type endpoint struct {
	path  string
	field string
}

var endpoints = map[scoring.Metric]endpoint{
	scoring.FirstResponse:   {"/api/v1/stats/issues/first-response-time", "average_response_time_seconds"},
	scoring.IssueResolution: {"/api/v1/stats/issues/avg-resolution-time", "average_resolution_time_seconds"},
	scoring.PRReview:        {"/api/v1/stats/prs/review-time", "average_review_time_seconds"},
}

const maxBodyBytes = 1 << 20

// HTTPProvider reads metrics from a remote gitlytix-compatible API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithBearerToken authenticates every request.
func WithBearerToken(token string) HTTPOption {
	return func(p *HTTPProvider) {
		if token == "" {
			return
		}
		base := p.client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c := *p.client
		c.Transport = &authRoundTripper{base: base, token: token}
		p.client = &c
	}
}

// authRoundTripper injects the bearer token into every outgoing request.
type authRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

// NewHTTPProvider returns a provider for the API rooted at baseURL.
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "http" }

// Fetch implements Provider with one request per metric, in parallel.
func (p *HTTPProvider) Fetch(ctx context.Context, repo string) (scoring.Input, error) {
	start := time.Now()
	defer func() {
		metrics.RecordProviderLatency(p.Name(), float64(time.Since(start).Microseconds())/1000)
	}()

	results := make([]fetchResult, len(scoring.Metrics()))
	var wg sync.WaitGroup
	for i, m := range scoring.Metrics() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok, err := p.fetchOne(ctx, endpoints[m], repo)
			metrics.RecordProviderFetch(p.Name(), m.Key(), outcome(ok, err))
			results[i] = fetchResult{metric: m, value: v, ok: ok, err: err}
		}()
	}
	wg.Wait()

	return collect(p.Name(), results)
}

// fetchOne returns ok=false without error when the remote has no data (404 or
// a null field).
func (p *HTTPProvider) fetchOne(ctx context.Context, ep endpoint, repo string) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u := p.baseURL + ep.path + "?" + url.Values{"repo_name": {repo}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, false, nil
	case resp.StatusCode != http.StatusOK:
		return 0, false, fmt.Errorf("%w: %s returned %d", ErrUnavailable, ep.path, resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", ep.path, err)
	}
	raw, ok := body[ep.field]
	if !ok {
		return 0, false, nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false, fmt.Errorf("decode %s.%s: %w", ep.path, ep.field, err)
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}
