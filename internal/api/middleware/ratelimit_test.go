package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/nckmackenzie/atarah-api/internal/config"
)

func setupLimitedRouter(bucketSize, refillRate int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		RateLimitBucketSize: bucketSize,
		RateLimitRefillRate: refillRate,
	}
	r := gin.New()
	r.Use(NewRateLimiterMiddleware(cfg).Limit())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestRateLimiter_AllowsWithinBucket(t *testing.T) {
	r := setupLimitedRouter(3, 1)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}
}

func TestRateLimiter_RejectsBeyondBucket(t *testing.T) {
	r := setupLimitedRouter(2, 0)

	codes := []int{}
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
}

func TestRateLimiter_TracksClientsSeparately(t *testing.T) {
	r := setupLimitedRouter(1, 0)

	first := httptest.NewRecorder()
	reqA := httptest.NewRequest(http.MethodGet, "/ping", nil)
	reqA.RemoteAddr = "10.0.0.3:1234"
	r.ServeHTTP(first, reqA)
	assert.Equal(t, http.StatusOK, first.Code)

	blocked := httptest.NewRecorder()
	reqA2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	reqA2.RemoteAddr = "10.0.0.3:1234"
	r.ServeHTTP(blocked, reqA2)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)

	other := httptest.NewRecorder()
	reqB := httptest.NewRequest(http.MethodGet, "/ping", nil)
	reqB.RemoteAddr = "10.0.0.4:1234"
	r.ServeHTTP(other, reqB)
	assert.Equal(t, http.StatusOK, other.Code, "a fresh client has its own bucket")
}
