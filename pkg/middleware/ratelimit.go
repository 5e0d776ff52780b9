package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/storefront/pkg/httputil"
)

// idleAfter is how long a client may stay silent before its bucket is dropped.
const idleAfter = 3 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter gives every client IP its own token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	logger *slog.Logger
	done   chan struct{}
	once   sync.Once
}

// NewRateLimiter admits rps requests per second per IP, with bursts of up to
// burst. A background sweep forgets idle IPs until Stop is called.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go rl.sweepEvery(idleAfter)
	return rl
}

// reserve takes a token for ip. It returns zero when the request may go
// ahead, or how long the client should wait.
func (rl *RateLimiter) reserve(ip string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.buckets[ip]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return wait
	}
	return 0
}

func (rl *RateLimiter) sweepEvery(d time.Duration) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idleAfter)
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// Handler answers 429 RATE_LIMITED with a Retry-After header once a client
// runs out of tokens.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		wait := rl.reserve(ip)
		if wait == 0 {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.WarnContext(r.Context(), "client rate limited",
			slog.String("client_ip", ip),
			slog.String("path", r.URL.Path),
			slog.Duration("retry_after", wait),
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
		})
	})
}

// Stop ends the background sweep. Further calls do nothing.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

// clientIP is the left-most X-Forwarded-For entry, else X-Real-IP, else the
// peer address. The storefront runs behind a proxy that sets these headers.
func clientIP(r *http.Request) string {
	candidates := []string{r.Header.Get("X-Real-IP")}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append([]string{first}, candidates...)
	}
	for _, c := range candidates {
		if ip := net.ParseIP(strings.TrimSpace(c)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
