package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	return cfg
}

// flaky answers 503 for the first failures calls and 200 afterwards.
func flaky(failures int32, calls *atomic.Int32, bodies *[]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if bodies != nil {
			b, _ := io.ReadAll(r.Body)
			*bodies = append(*bodies, string(b))
		}
		if calls.Add(1) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}
}

func TestDo_RetriesIdempotentOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(flaky(2, &calls, nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/store/products", nil)
	require.NoError(t, err)

	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ReturnsLastServerErrorWhenRetriesRunOut(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(flaky(10, &calls, nil))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/store/carts/c1/line-items/l1", nil)
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_PostIsSentOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(flaky(1, &calls, nil))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/customer/emailpass", strings.NewReader(`{}`))
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_RewindsBodyBetweenAttempts(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	srv := httptest.NewServer(flaky(1, &calls, &bodies))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/store/customers/me", strings.NewReader(`{"first_name":"Ada"}`))
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, `{"first_name":"Ada"}`, bodies[1])
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := New(fastConfig()).Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_StopsWhenContextIsCancelled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(flaky(10, &calls, nil))
	defer srv.Close()

	cfg := fastConfig()
	cfg.RetryWaitMin = time.Second
	cfg.RetryWaitMax = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := New(cfg).Do(ctx, req)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NetworkErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 1
	req, _ := http.NewRequest(http.MethodGet, url+"/health", nil)
	_, err := New(cfg).Do(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /health after 2 attempt(s)")
}

func TestBackoff(t *testing.T) {
	c := New(Config{RetryWaitMin: 100 * time.Millisecond, RetryWaitMax: 350 * time.Millisecond})

	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 200*time.Millisecond, c.backoff(2))
	assert.Equal(t, 350*time.Millisecond, c.backoff(3))
	assert.Equal(t, 350*time.Millisecond, c.backoff(80))
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(http.StatusBadGateway))
	assert.True(t, retryableStatus(http.StatusInternalServerError))
	assert.False(t, retryableStatus(http.StatusNotImplemented))
	assert.False(t, retryableStatus(http.StatusTooManyRequests))
}
