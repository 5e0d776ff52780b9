package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig holds the HTTP-layer settings.
type RouterConfig struct {
	Cookies CookieConfig
	CORS    middleware.CORSConfig
	// RateLimiter guards mutating routes. Nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	PprofCIDRs  []string
	Heartbeat   time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	auth AuthService,
	sessions Sessions,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Compression and the request timeout are applied per group below: the
	// event stream must not be buffered or cut off.
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Tracing)
	r.Use(middleware.CustomerIdentity(TokenCookie))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	sessionMW := NewSessionMiddleware(sessions, cfg.Cookies)
	authHandler := NewAuthHandler(auth, cfg.Cookies, logger)
	wishlistHandler := NewWishlistHandler(logger)
	cartHandler := NewCartHandler(cfg.Cookies, logger)
	dropdownHandler := NewDropdownHandler(logger)
	eventsHandler := NewEventsHandler(cfg.Heartbeat, logger)

	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limit = cfg.RateLimiter.Handler
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(sessionMW.Handler)

		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(30 * time.Second))
			r.Use(ContentTypeJSON)

			r.Get("/session", authHandler.GetSession)
			r.Get("/wishlist", wishlistHandler.Get)
			r.Get("/wishlist/contains/{variantId}", wishlistHandler.Contains)
			r.Get("/wishlist/shared/{token}", wishlistHandler.Shared)
			r.Get("/cart", cartHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(limit)

				r.Post("/auth/login", authHandler.Login)
				r.Post("/auth/register", authHandler.Register)
				r.Post("/auth/logout", authHandler.Logout)
				r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
				r.Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
				r.Put("/customer", authHandler.UpdateCustomer)

				r.Post("/wishlist/items", wishlistHandler.AddItem)
				r.Delete("/wishlist/items/{itemId}", wishlistHandler.RemoveItem)
				r.Post("/wishlist/toggle", wishlistHandler.Toggle)
				r.Post("/wishlist/share", wishlistHandler.Share)

				r.Post("/cart/items", cartHandler.AddItem)
				r.Put("/cart/items/{lineId}", cartHandler.UpdateItem)
				r.Delete("/cart/items/{lineId}", cartHandler.RemoveItem)

				r.Post("/dropdowns/{name}/{action}", dropdownHandler.Act)
			})
		})
	})

	return r
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				writeMessage(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
