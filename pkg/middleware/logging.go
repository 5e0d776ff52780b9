package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/logger"
)

// CorrelationHeader carries the request's correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationID = 128

// RequestLogging assigns the correlation id, stores l in the context and
// writes one access line per request. Server errors log at error level and
// client errors at warn; probes and scrapes only at debug.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := strings.TrimSpace(r.Header.Get(CorrelationHeader))
			if id == "" || len(id) > maxCorrelationID {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, id)

			ctx := logger.NewContext(logger.WithCorrelationID(r.Context(), id), l)
			rec := record(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.Status()
			l.Log(ctx, accessLevel(r.URL.Path, status), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", rec.written),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/") || path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
