package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(msg string) Checker {
	return func(context.Context) error { return errors.New(msg) }
}

func probe(t *testing.T, hf http.HandlerFunc) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	hf.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("commerce", down("refused"))

	code, resp := probe(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		commerce Checker
		redis    Checker
		code     int
		status   Status
	}{
		{"all up", up, up, http.StatusOK, StatusUp},
		{"cache down", up, down("redis: connection refused"), http.StatusOK, StatusDegraded},
		{"commerce down", down("503"), up, http.StatusServiceUnavailable, StatusDown},
		{"both down", down("503"), down("timeout"), http.StatusServiceUnavailable, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("commerce", tt.commerce)
			h.RegisterNonCritical("redis", tt.redis)

			code, resp := probe(t, h.ReadinessHandler())
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, resp.Status)
			require.Len(t, resp.Checks, 2)
			assert.True(t, resp.Checks["commerce"].Critical)
			assert.False(t, resp.Checks["redis"].Critical)
		})
	}
}

func TestReadiness_ReportsError(t *testing.T) {
	h := NewHandler()
	h.RegisterNonCritical("kafka", down("no brokers reachable"))

	_, resp := probe(t, h.ReadinessHandler())
	assert.Equal(t, StatusDown, resp.Checks["kafka"].Status)
	assert.Equal(t, "no brokers reachable", resp.Checks["kafka"].Error)
}

func TestReadiness_ChecksRunConcurrently(t *testing.T) {
	h := NewHandler()
	var running, peak atomic.Int32
	slow := func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	h.RegisterCritical("commerce", slow)
	h.RegisterNonCritical("redis", slow)
	h.RegisterNonCritical("kafka", slow)

	resp := h.Check(context.Background())
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, int32(3), peak.Load())
}

func TestReadiness_CheckSeesDeadline(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("commerce", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return nil
	})
	assert.Equal(t, StatusUp, h.Check(context.Background()).Status)
}

func TestRegister_ReplacesSameName(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("redis", down("x"))
	h.RegisterNonCritical("redis", up)

	resp := h.Check(context.Background())
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Checks["redis"].Critical)
}

func TestDrain(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("commerce", up)
	h.Drain()

	code, resp := probe(t, h.ReadinessHandler())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDraining, resp.Status)

	code, _ = probe(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
}
