package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoStore(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := httptest.NewRecorder()
		NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rr, httptest.NewRequest(method, "/", nil))
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"), method)
	}
}
