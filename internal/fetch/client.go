// Package fetch provides the shared resilient HTTP client for all outbound
// source reads: the RSS feed, the news page, and the GitHub API. Calls are
// routed through a circuit breaker and retried with exponential backoff, so
// a flapping upstream cannot stall a poll cycle or hammer the source.
//
// The Discord delivery client does NOT use this package: webhook delivery
// has its own rate-limit semantics and keeps its own retry loop.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"modrelay/internal/types"
)

// maxDocumentBytes bounds how much of a source document Get will read (8 MB).
// Feeds and news pages are far smaller; artifact downloads go through Do and
// apply their own limit.
const maxDocumentBytes = 8 << 20

// Policy configures the retry behavior for the Client.
type Policy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultPolicy returns sensible defaults for source reads.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// Client wraps an *http.Client and a circuit breaker to enforce consistent
// resilience patterns on outbound reads. Source clients embed or hold one.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	policy     Policy
	userAgent  string
	sleep      types.Sleeper
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithSleeper overrides the sleep function used between retries. Intended for
// testing to avoid real delays.
func WithSleeper(fn types.Sleeper) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// WithHTTPClient overrides the underlying HTTP client (httptest injection).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client named for its upstream (the name appears in
// circuit breaker state transitions).
func NewClient(name string, timeout time.Duration, policy Policy, userAgent string, opts ...Option) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		policy:     policy,
		userAgent:  userAgent,
		sleep:      time.Sleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes the request with circuit breaking and retry on 429/5xx,
// respecting Retry-After headers. On success (any status below 500 except
// 429) the response is returned as-is; the caller closes the body.
//
// On exhausted retries or an open breaker, Do returns a types.AppError with
// the matching upstream error code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Snapshot the body so it can be replayed on retries. GET requests are
	// the common case here and skip this entirely.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
				"reading request body for retry support", err)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.policy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// 5xx and 429 count as failures for the breaker.
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker means the upstream is already known-bad; stop.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleep(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}

	return nil, c.mapError(lastResp, lastErr)
}

// Get fetches url and returns its body, enforcing a 2xx status. This is the
// whole-document read used by the feed and news sources.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("building request for %s", url), err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			fmt.Sprintf("fetching %s: status %d", url, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			fmt.Sprintf("reading %s", url), err)
	}

	return body, nil
}

// computeBackoff determines the wait before the next retry attempt. It
// respects the Retry-After header if present, otherwise uses exponential
// backoff with full jitter clamped to [MinWait, MaxWait].
func (c *Client) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				wait := time.Duration(seconds) * time.Second
				if wait > c.policy.MaxWait {
					wait = c.policy.MaxWait
				}
				return wait
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.policy.MinWait
				}
				if wait > c.policy.MaxWait {
					wait = c.policy.MaxWait
				}
				return wait
			}
		}
	}

	base := float64(c.policy.MinWait) * math.Pow(2, float64(attempt))
	maxWait := float64(c.policy.MaxWait)
	if base > maxWait {
		base = maxWait
	}

	minWait := float64(c.policy.MinWait)
	if base <= minWait {
		return c.policy.MinWait
	}
	jittered := minWait + rand.Float64()*(base-minWait)
	return time.Duration(jittered)
}

// mapError translates HTTP-level failures into domain-level AppErrors.
func (c *Client) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream unavailable", err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited,
				"upstream rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamSource,
		"upstream request failed", err)
}
