package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// httptest.NewRecorder captures the response without starting a real server;
// with gin's test mode, middleware is tested in isolation.

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/test", func(c *gin.Context) {
		key, _ := c.Get(ContextKeyAPIKey)
		s, _ := key.(string)
		c.String(http.StatusOK, s)
	})
	return router
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		header  string
		value   string
		url     string
		want    int
		wantKey string
	}{
		{"valid header", []string{"k1", "k2"}, "X-API-Key", "k2", "/test", http.StatusOK, "k2"},
		{"valid bearer", []string{"k1"}, "Authorization", "Bearer k1", "/test", http.StatusOK, "k1"},
		{"valid query param", []string{"k1"}, "", "", "/test?api_key=k1", http.StatusOK, "k1"},
		{"missing", []string{"k1"}, "", "", "/test", http.StatusUnauthorized, ""},
		{"invalid", []string{"k1"}, "X-API-Key", "nope", "/test", http.StatusUnauthorized, ""},
		{"open when no keys", nil, "", "", "/test", http.StatusOK, ""},
		{"blank keys are ignored", []string{""}, "", "", "/test", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(APIKeyAuth(tt.keys))
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			if tt.want == http.StatusOK && w.Body.String() != tt.wantKey {
				t.Errorf("expected key %q in context, got %q", tt.wantKey, w.Body.String())
			}
		})
	}
}

func TestAdminKeyAuth(t *testing.T) {
	router := newRouter(AdminKeyAuth([]string{"admin-key"}))

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"valid", "admin-key", http.StatusOK},
		{"not an admin key", "user-key", http.StatusForbidden},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
