package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsServe(cfg CORSConfig, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	reached := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	req := httptest.NewRequest(method, "/api/v1/cart", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORS_AllowedOriginWithCredentials(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true}
	rec, reached := corsServe(cfg, http.MethodGet, "https://shop.example.com", false)

	assert.True(t, reached)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, CorrelationHeader, rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true}

	for _, origin := range []string{"https://evil.example.com", ""} {
		rec, reached := corsServe(cfg, http.MethodGet, origin, false)
		assert.True(t, reached)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), "origin %q", origin)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	}
}

func TestCORS_Wildcard(t *testing.T) {
	rec, _ := corsServe(CORSConfig{AllowedOrigins: []string{"*"}}, http.MethodGet, "http://localhost:5173", false)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = corsServe(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, http.MethodGet, "http://localhost:5173", false)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true, MaxAge: 600}
	rec, reached := corsServe(cfg, http.MethodOptions, "https://shop.example.com", true)

	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, corsMethods, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Last-Event-ID")
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightDefaultsMaxAge(t *testing.T) {
	rec, _ := corsServe(CORSConfig{AllowedOrigins: []string{"*"}}, http.MethodOptions, "https://a.example", true)
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	_, reached := corsServe(CORSConfig{AllowedOrigins: []string{"*"}}, http.MethodOptions, "https://a.example", false)
	assert.True(t, reached)
}
