// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
Package phishapi is the HTTP client for the phishing simulation results API.

Every call returns a Result: Ok with the decoded value, Throttled with the
wait advised by the upstream, or Failed. Throttling is signalled either by
HTTP 429 or by a body starting with "API Token Busy"; a Retry-After header
takes precedence over the wait embedded in the body text.

Resilience:
  - Request pacing through a golang.org/x/time/rate limiter, which may be
    shared by the clients of all tenants
  - 30 second HTTP timeout by default
  - Optional circuit breaker (Breaker) in front of the host; throttled
    responses count as successes for the breaker

Retries are not done here. The ingest package decides whether a throttled
result is retried or escalated to a tenant cooldown.
*/
package phishapi

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/metrics"
	"github.com/tomtom215/phishsync/internal/models"
)

// maxErrorBodySize limits how much of an error response is read.
const maxErrorBodySize = 64 * 1024

// Endpoint labels used in metrics.
const (
	EndpointScenarios = "scenarios"
	EndpointCSV       = "csv"
)

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// Client talks to the API on behalf of one tenant.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithLimiter paces requests through l. Share one limiter between the
// clients of all tenants to bound the total request rate against the host.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewLimiter builds a limiter from the API configuration. A non-positive
// rate disables pacing.
func NewLimiter(cfg *config.APIConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// NewClient creates a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, cfg *config.APIConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(cfg)
	}
	return c
}

// ListScenarios fetches the scenarios endpoint and decodes the JSON array.
func (c *Client) ListScenarios(ctx context.Context, params *Params) Result[[]models.Scenario] {
	start := time.Now()
	body, res := c.get(ctx, c.baseURL+"/scenarios", params)
	if res.Outcome() != OutcomeOK {
		metrics.RecordUpstreamRequest(EndpointScenarios, res.Outcome().String(), time.Since(start))
		return Result[[]models.Scenario]{outcome: res.outcome, wait: res.wait, err: res.err}
	}

	var scenarios []models.Scenario
	if err := json.Unmarshal(body.data, &scenarios); err != nil {
		metrics.RecordUpstreamRequest(EndpointScenarios, metrics.UpstreamFailed, time.Since(start))
		return Failed[[]models.Scenario](fmt.Errorf("%w: scenarios: %w", ErrMalformedResponse, err))
	}

	metrics.RecordUpstreamRequest(EndpointScenarios, metrics.UpstreamOK, time.Since(start))
	return Ok(scenarios)
}

// FetchCSV downloads a CSV locator. The response must be text/csv.
func (c *Client) FetchCSV(ctx context.Context, locator string, params *Params) Result[string] {
	start := time.Now()
	body, res := c.get(ctx, locator, params)
	if res.Outcome() != OutcomeOK {
		metrics.RecordUpstreamRequest(EndpointCSV, res.Outcome().String(), time.Since(start))
		return Result[string]{outcome: res.outcome, wait: res.wait, err: res.err}
	}

	mediaType, _, err := mime.ParseMediaType(body.contentType)
	if err != nil || mediaType != "text/csv" {
		metrics.RecordUpstreamRequest(EndpointCSV, metrics.UpstreamFailed, time.Since(start))
		return Failed[string](fmt.Errorf("%w: got %q from %s", ErrNotCSV, body.contentType, redact(locator)))
	}

	metrics.RecordUpstreamRequest(EndpointCSV, metrics.UpstreamOK, time.Since(start))
	return Ok(string(body.data))
}

type response struct {
	data        []byte
	contentType string
}

// get performs one paced GET and classifies the response. The returned
// Result carries no value; callers decode response.data on OutcomeOK.
func (c *Client) get(ctx context.Context, rawURL string, params *Params) (response, Result[struct{}]) {
	reqURL, err := withQuery(rawURL, params)
	if err != nil {
		return response{}, Failed[struct{}](err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return response{}, Failed[struct{}](fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return response{}, Failed[struct{}](fmt.Errorf("%w: %w", ErrInvalidLocator, err))
	}
	req.Header.Set("Authorization", "Token token="+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, Failed[struct{}](fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	var data []byte
	if success {
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return response{}, Failed[struct{}](fmt.Errorf("%w: reading body: %w", ErrTransport, err))
		}
	} else {
		data = readBodyForError(resp.Body)
	}

	if resp.StatusCode == http.StatusTooManyRequests || isBusy(data) {
		wait := throttleWait(resp.Header, data, c.now())
		logging.Ctx(ctx).Debug().
			Int("status", resp.StatusCode).
			Dur("wait", wait).
			Msg("Upstream throttled request")
		return response{}, Throttled[struct{}](wait)
	}

	if !success {
		return response{}, Failed[struct{}](&StatusError{
			Code: resp.StatusCode,
			URL:  redact(rawURL),
			Body: strings.TrimSpace(string(data)),
		})
	}

	return response{data: data, contentType: resp.Header.Get("Content-Type")}, Ok(struct{}{})
}

// withQuery merges params into the query of rawURL.
func withQuery(rawURL string, params *Params) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}
	if params == nil {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params.Build() {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact drops the query string, which may carry signed download tokens.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
