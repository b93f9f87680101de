package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupTestRouter(l Limiter, keyFunc func(*gin.Context) string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(l, keyFunc))
	r.GET("/v1/domains", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r *gin.Engine, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/domains", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGinMiddlewareLimitsPerClient(t *testing.T) {
	r := setupTestRouter(newTestLimiter(t, 0.001, 2), nil)

	for range 2 {
		w := get(r, "10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "rate=0.00, burst=2", w.Header().Get("X-RateLimit-Limit"))
	}
	w := get(r, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, get(r, "10.0.0.2:1234").Code)
}

func TestGinMiddlewareEmptyKeyPasses(t *testing.T) {
	r := setupTestRouter(newTestLimiter(t, 0.001, 1), func(*gin.Context) string { return "" })
	for range 3 {
		assert.Equal(t, http.StatusOK, get(r, "10.0.0.1:1").Code)
	}
}

func TestGinMiddlewareDiscard(t *testing.T) {
	r := setupTestRouter(Discard(), nil)
	w := get(r, "10.0.0.1:1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestFormatLimit(t *testing.T) {
	assert.Equal(t, "rate=10.00, burst=20", formatLimit(Limit{Rate: 10, Burst: 20}))
	assert.Equal(t, "rate=0.50, burst=5", formatLimit(Limit{Rate: 0.5, Burst: 5}))
}
