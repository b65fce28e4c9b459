package app

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func protectedRouter(enabled bool) *gin.Engine {
	router := gin.New()
	router.GET("/metrics", basicAuthMiddleware(enabled, "metrics", "prometheus", "secret123"), func(c *gin.Context) {
		c.String(http.StatusOK, "metrics")
	})
	return router
}

func TestBasicAuthMiddleware_Disabled(t *testing.T) {
	router := protectedRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestBasicAuthMiddleware_ValidCredentials(t *testing.T) {
	router := protectedRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prometheus", "secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics", w.Body.String())
}

func TestBasicAuthMiddleware_Rejects(t *testing.T) {
	router := protectedRouter(true)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong username", "Basic " + base64.StdEncoding.EncodeToString([]byte("wronguser:secret123"))},
		{"wrong password", "Basic " + base64.StdEncoding.EncodeToString([]byte("prometheus:wrongpass"))},
		{"only basic", "Basic"},
		{"invalid base64", "Basic notbase64!!!"},
		{"bearer token", "Bearer sometoken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="metrics"`, w.Header().Get("WWW-Authenticate"))
		})
	}
}
