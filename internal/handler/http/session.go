package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

// Cookie names shared with the storefront pages.
const (
	SessionCookie = "_storefront_sid"
	TokenCookie   = "_storefront_jwt"
	CartCookie    = "_storefront_cart_id"
)

const (
	defaultTokenMaxAge = 7 * 24 * time.Hour
	cartCookieMaxAge   = 7 * 24 * time.Hour
)

// Sessions hands out the Store of a browser session.
type Sessions interface {
	Get(ctx context.Context, id string, seed storefront.Seed) *storefront.Store
	Remove(id string)
}

// CookieConfig controls the attributes of the cookies the service sets.
type CookieConfig struct {
	Secure bool
	Domain string
}

type cookieJar struct {
	cfg CookieConfig
	now func() time.Time
}

func (j cookieJar) set(w http.ResponseWriter, name, value string, expires time.Time) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.cfg.Domain,
		HttpOnly: true,
		Secure:   j.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		c.Expires = expires
		c.MaxAge = int(expires.Sub(j.now()).Seconds())
		if c.MaxAge <= 0 {
			c.MaxAge = -1
		}
	}
	http.SetCookie(w, c)
}

func (j cookieJar) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   j.cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setToken stores the customer token until the token's own expiry.
func (j cookieJar) setToken(w http.ResponseWriter, token string) {
	expires := j.now().Add(defaultTokenMaxAge)
	if claims, err := middleware.ParseCustomerToken(token); err == nil && !claims.ExpiresAt.IsZero() {
		expires = claims.ExpiresAt
	}
	j.set(w, TokenCookie, token, expires)
}

// syncCart makes the cart cookie follow the Store's current cart.
func (j cookieJar) syncCart(w http.ResponseWriter, r *http.Request, store *storefront.Store) {
	current := cookieValue(r, CartCookie)
	switch id := store.Cart.CartID(); {
	case id == current:
	case id == "":
		j.clear(w, CartCookie)
	default:
		j.set(w, CartCookie, id, j.now().Add(cartCookieMaxAge))
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type storeKey struct{}

// storeFromContext returns the Store resolved by SessionMiddleware.
func storeFromContext(ctx context.Context) *storefront.Store {
	s, _ := ctx.Value(storeKey{}).(*storefront.Store)
	return s
}

// SessionMiddleware resolves the browser session from its cookie, creating
// one when absent, and puts its Store in the request context.
type SessionMiddleware struct {
	sessions Sessions
	cookies  cookieJar
}

// NewSessionMiddleware creates the session-resolving middleware.
func NewSessionMiddleware(sessions Sessions, cfg CookieConfig) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		cookies:  cookieJar{cfg: cfg, now: time.Now},
	}
}

// Handler is the middleware func.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := cookieValue(r, SessionCookie)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.New().String()
			m.cookies.set(w, SessionCookie, sid, time.Time{})
		}

		ctx := logger.WithSessionID(r.Context(), sid)

		store := m.sessions.Get(ctx, sid, storefront.Seed{
			Token:  cookieValue(r, TokenCookie),
			CartID: cookieValue(r, CartCookie),
		})
		ctx = context.WithValue(ctx, storeKey{}, store)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
