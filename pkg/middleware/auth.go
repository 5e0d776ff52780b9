package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/pkg/logger"
)

// CustomerClaims are the fields read from a commerce-issued customer token.
type CustomerClaims struct {
	ActorID   string
	ActorType string
	ExpiresAt time.Time
}

// ParseCustomerToken reads the claims of a commerce-issued token without
// verifying its signature. The commerce API verifies the token on every call;
// the claims here only drive cookie lifetimes and log fields.
func ParseCustomerToken(token string) (CustomerClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return CustomerClaims{}, fmt.Errorf("parse customer token: %w", err)
	}

	var out CustomerClaims
	out.ActorID, _ = claims["actor_id"].(string)
	out.ActorType, _ = claims["actor_type"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// CustomerIdentity reads the customer token from the named cookie and stores
// its actor id in the context for log attribution. Requests without a
// readable token pass through unchanged.
func CustomerIdentity(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err == nil && c.Value != "" {
				if claims, err := ParseCustomerToken(c.Value); err == nil && claims.ActorID != "" {
					r = r.WithContext(logger.WithCustomerID(r.Context(), claims.ActorID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
