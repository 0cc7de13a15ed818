package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/types"
)

func testPolicy(maxRetries int) Policy {
	return Policy{MaxRetries: maxRetries, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.Handler, policy Policy) (*Client, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test", 5*time.Second, policy, "modrelay-test/1.0",
		WithSleeper(func(time.Duration) {}),
		WithHTTPClient(server.Client()),
	)
	return client, server.URL
}

func TestGet_Success(t *testing.T) {
	client, url := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "modrelay-test/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("<rss/>"))
	}), testPolicy(1))

	body, err := client.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, []byte("<rss/>"), body)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, url := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}), testPolicy(3))

	body, err := client.Get(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ExhaustedRetriesMapToUpstreamError(t *testing.T) {
	var calls atomic.Int32
	client, url := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), testPolicy(2))

	_, err := client.Get(context.Background(), url)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
	assert.Equal(t, int32(3), calls.Load()) // 1 initial + 2 retries
}

func TestGet_RateLimitMapsToDistinctCode(t *testing.T) {
	client, url := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}), testPolicy(1))

	_, err := client.Get(context.Background(), url)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
}

func TestGet_NonRetryableClientErrorSurfacesStatus(t *testing.T) {
	var calls atomic.Int32
	client, url := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}), testPolicy(3))

	_, err := client.Get(context.Background(), url)
	require.Error(t, err)

	// 404 is not retried.
	assert.Equal(t, int32(1), calls.Load())

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamSource, appErr.Code)
}

func TestComputeBackoff_RespectsRetryAfterSeconds(t *testing.T) {
	client := NewClient("test", time.Second, Policy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: time.Minute}, "")

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"7"}}}
	assert.Equal(t, 7*time.Second, client.computeBackoff(0, resp))
}

func TestComputeBackoff_ClampsToMaxWait(t *testing.T) {
	client := NewClient("test", time.Second, Policy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 2 * time.Second}, "")

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"600"}}}
	assert.Equal(t, 2*time.Second, client.computeBackoff(0, resp))
}

func TestDo_RequestIDPropagated(t *testing.T) {
	client, url := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get("X-Request-Id"))
	}), testPolicy(0))

	ctx := types.WithRequestID(context.Background(), "req-42")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
}
