package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"postapi/internal/config"
	"postapi/internal/constants"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RateLimitConfig{RPS: 2, CleanupInterval: 30})
	assert.Equal(t, 2.0, cfg.RPS)
	assert.Equal(t, DefaultConfig().Burst, cfg.Burst)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, DefaultConfig().MaxAge, cfg.MaxAge)
}

func TestMiddleware_PerClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(Config{RPS: 0.001, Burst: 1, CleanupInterval: time.Minute, MaxAge: time.Minute}))
	r.PUT("/", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	send := func(remoteAddr, provider string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set(constants.HeaderProvider, provider)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusAccepted, send("192.0.2.10:4000", "provider-1").Code)

	limited := send("192.0.2.10:4001", "provider-1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	rotated := send("192.0.2.10:4002", "provider-99")
	assert.Equal(t, http.StatusTooManyRequests, rotated.Code, "a new provider header does not get a new bucket")

	assert.Equal(t, http.StatusAccepted, send("192.0.2.20:4000", "provider-1").Code, "each client IP has its own bucket")
}

func TestBuckets_Sweep(t *testing.T) {
	b := newBuckets(Config{RPS: 1, Burst: 2, MaxAge: time.Minute})
	start := time.Now()

	allowed, remaining := b.take("ip:192.0.2.1", start)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining)
	b.take("ip:192.0.2.2", start.Add(50*time.Second))

	b.sweep(start.Add(90 * time.Second))
	assert.Equal(t, 1, b.len(), "only the idle bucket is dropped")
}
