package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/v1/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.9:1234"
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterThrottlesAfterBurst(t *testing.T) {
	// 10 rpm gives a burst of 1, so the second immediate request is refused.
	router := newLimitedRouter(NewRateLimiter(10))

	require.Equal(t, http.StatusOK, get(router, "/v1/ping").Code)

	w := get(router, "/v1/ping")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.JSONEq(t, `{"error": "Too many requests. Please slow down."}`, w.Body.String())
}

func TestRateLimiterExemptsHealth(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(10))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, get(router, "/health").Code)
	}
}

func TestRateLimiterDisabledWhenBudgetZero(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(0))

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, get(router, "/v1/ping").Code)
	}
}
