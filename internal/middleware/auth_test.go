package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := AuthMiddleware(ok)

	tests := []struct {
		path     string
		loggedIn bool
		want     int
	}{
		{"/login", false, http.StatusTeapot},
		{"/auth/login", false, http.StatusTeapot},
		{"/ingest/camera", false, http.StatusTeapot},
		{"/ingest/audio", false, http.StatusTeapot},
		{"/api/status", false, http.StatusUnauthorized},
		{"/api/view", false, http.StatusUnauthorized},
		{"/", false, http.StatusSeeOther},
		{"/logs/info", false, http.StatusSeeOther},
		{"/api/status", true, http.StatusTeapot},
		{"/", true, http.StatusTeapot},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.loggedIn {
			req.AddCookie(&http.Cookie{Name: AuthCookie, Value: "true"})
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s logged in=%v", tt.path, tt.loggedIn)
	}
}
