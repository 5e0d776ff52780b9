package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(t *testing.T, name string, handler http.Handler) (*CircuitBreakerClient, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := fastConfig()
	cfg.MaxRetries = 0
	bcfg := DefaultCircuitBreakerConfig(name)
	bcfg.MinRequests = 3
	bcfg.Timeout = time.Hour

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCircuitBreakerClient(New(cfg), bcfg, logger), srv.URL
}

func get(t *testing.T, c *CircuitBreakerClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestCircuitBreaker_PassesResponsesThrough(t *testing.T) {
	c, url := testBreaker(t, "cb-pass", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for range 5 {
		resp, err := get(t, c, url)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestCircuitBreaker_ServerErrorsTripButReachCaller(t *testing.T) {
	var calls atomic.Int32
	c, url := testBreaker(t, "cb-trip", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	for range 3 {
		resp, err := get(t, c, url)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	resp, err := get(t, c, url)
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())

	assert.Equal(t, float64(2), testutil.ToFloat64(breakerState.WithLabelValues("cb-trip")))
	assert.Equal(t, float64(1), testutil.ToFloat64(breakerRejected.WithLabelValues("cb-trip")))
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	c, url := testBreaker(t, "cb-cancel", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	for range 4 {
		ctx, cancel := context.WithCancel(context.Background())
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := c.Do(ctx, req)
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestCircuitBreaker_NetworkErrorsTrip(t *testing.T) {
	c, _ := testBreaker(t, "cb-down", http.NotFoundHandler())
	dead := httptest.NewServer(http.NotFoundHandler())
	srvURL := dead.URL
	dead.Close()

	for range 3 {
		_, err := get(t, c, srvURL)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	_, err := get(t, c, srvURL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
