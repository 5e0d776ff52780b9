package middleware

import (
	"net/http"
	"slices"
	"strconv"
)

const (
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Accept, Content-Type, Last-Event-ID, " + CorrelationHeader
)

// CORSConfig lists the storefront origins allowed to call the API.
type CORSConfig struct {
	// AllowedOrigins are exact origins such as "https://shop.example.com".
	// "*" admits any origin.
	AllowedOrigins []string
	// AllowCredentials lets browsers send the session cookies. The request
	// origin is then echoed in place of "*".
	AllowCredentials bool
	// MaxAge caches preflight results, in seconds. Zero selects one hour.
	MaxAge int
}

// CORS answers preflight requests and sets the CORS response headers for
// allowed origins. Requests from other origins get no CORS headers, so the
// browser blocks them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	anyOrigin := slices.Contains(cfg.AllowedOrigins, "*")
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}

	allowed := func(origin string) bool {
		return anyOrigin || slices.Contains(cfg.AllowedOrigins, origin)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin == "" || !allowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			if anyOrigin && !cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Expose-Headers", CorrelationHeader)

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
