// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/pkg/httputil"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// Status of the service or one dependency.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
	StatusDraining Status = "draining"
)

// checkTimeout bounds one readiness probe.
const checkTimeout = 3 * time.Second

// Response is the probe body.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one dependency's outcome.
type CheckResult struct {
	Status    Status `json:"status"`
	Critical  bool   `json:"critical"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type check struct {
	name     string
	run      Checker
	critical bool
}

// Handler holds the registered checks.
type Handler struct {
	mu       sync.RWMutex
	checks   []check
	draining atomic.Bool
	now      func() time.Time
}

// NewHandler returns a Handler with no checks.
func NewHandler() *Handler {
	return &Handler{now: time.Now}
}

// RegisterCritical adds a check whose failure makes the service unready.
func (h *Handler) RegisterCritical(name string, c Checker) { h.register(name, c, true) }

// RegisterNonCritical adds a check whose failure only degrades readiness:
// the storefront keeps serving without its product cache or event stream.
func (h *Handler) RegisterNonCritical(name string, c Checker) { h.register(name, c, false) }

func (h *Handler) register(name string, c Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].name == name {
			h.checks[i] = check{name, c, critical}
			return
		}
	}
	h.checks = append(h.checks, check{name, c, critical})
}

// Drain makes readiness fail from now on, so load balancers stop routing
// new sessions here while in-flight requests finish.
func (h *Handler) Drain() { h.draining.Store(true) }

// LivenessHandler answers 200 while the process runs.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Response{Status: StatusUp, Timestamp: h.now().UTC()})
	}
}

// ReadinessHandler runs every check concurrently. It answers 503 when a
// critical check fails or the handler is draining, and 200 otherwise, with
// status degraded when only non-critical checks failed.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.draining.Load() {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: StatusDraining, Timestamp: h.now().UTC()})
			return
		}

		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}

// Check runs all checks and aggregates their results.
func (h *Handler) Check(ctx context.Context) Response {
	h.mu.RLock()
	checks := append([]check(nil), h.checks...)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := h.now()
			err := c.run(ctx)
			res := CheckResult{Status: StatusUp, Critical: c.critical, LatencyMS: h.now().Sub(start).Milliseconds()}
			if err != nil {
				res.Status, res.Error = StatusDown, err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{Status: StatusUp, Timestamp: h.now().UTC(), Checks: make(map[string]CheckResult, len(checks))}
	for i, c := range checks {
		res := results[i]
		resp.Checks[c.name] = res
		if res.Status != StatusDown {
			continue
		}
		if c.critical {
			resp.Status = StatusDown
		} else if resp.Status == StatusUp {
			resp.Status = StatusDegraded
		}
	}
	return resp
}
