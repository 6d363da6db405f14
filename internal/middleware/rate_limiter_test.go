package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func limitedEngine(config RateLimiterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(NewRateLimiter(config).RateLimit())
	engine.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return engine
}

func hit(engine *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	engine.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	engine := limitedEngine(RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2})

	assert.Equal(t, http.StatusOK, hit(engine, "203.0.113.5:4000"))
	assert.Equal(t, http.StatusOK, hit(engine, "203.0.113.5:4000"))
	assert.Equal(t, http.StatusTooManyRequests, hit(engine, "203.0.113.5:4000"))
}

func TestRateLimitIsPerClient(t *testing.T) {
	engine := limitedEngine(RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 1})

	assert.Equal(t, http.StatusOK, hit(engine, "203.0.113.5:4000"))
	assert.Equal(t, http.StatusTooManyRequests, hit(engine, "203.0.113.5:4001"),
		"same IP shares one bucket")
	assert.Equal(t, http.StatusOK, hit(engine, "198.51.100.7:4000"),
		"a different client is unaffected")
}
