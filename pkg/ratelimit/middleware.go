// Package ratelimit throttles the intake API with one token bucket per
// provider, falling back to the client IP for unauthenticated calls.
package ratelimit

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"postapi/internal/config"
	apperrors "postapi/pkg/errors"
	"postapi/pkg/metrics"
)

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromConfig fills zero values from DefaultConfig.
func FromConfig(cfg config.RateLimitConfig) Config {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one limiter per client key. Idle buckets are dropped by sweep.
type buckets struct {
	mu      sync.Mutex
	cfg     Config
	clients map[string]*bucket
}

func newBuckets(cfg Config) *buckets {
	return &buckets{cfg: cfg, clients: make(map[string]*bucket)}
}

// take consumes a token for key and reports whether the call may proceed and
// how many whole tokens remain.
func (b *buckets) take(key string, now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.clients[key]
	if !ok {
		c = &bucket{limiter: rate.NewLimiter(rate.Limit(b.cfg.RPS), b.cfg.Burst)}
		b.clients[key] = c
	}
	c.lastSeen = now

	allowed := c.limiter.AllowN(now, 1)
	remaining := int(math.Max(0, math.Floor(c.limiter.TokensAt(now))))
	return allowed, remaining
}

func (b *buckets) sweep(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, c := range b.clients {
		if now.Sub(c.lastSeen) > b.cfg.MaxAge {
			delete(b.clients, key)
		}
	}
}

func (b *buckets) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// clientKey buckets callers by client IP. The provider header is not
// authenticated yet when the limiter runs, so it cannot pick the bucket.
func clientKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.RemoteIP()
	}
	return "ip:" + ip
}

// Middleware rejects calls over the configured rate with 429. The sweeper
// goroutine lives as long as the process.
func Middleware(cfg Config) gin.HandlerFunc {
	store := newBuckets(cfg)

	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for now := range ticker.C {
			store.sweep(now)
		}
	}()

	limit := strconv.FormatFloat(cfg.RPS, 'f', -1, 64)

	return func(c *gin.Context) {
		allowed, remaining := store.take(clientKey(c), time.Now())

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(apperrors.ErrRateLimited.Status, apperrors.ToErrorResponse(apperrors.ErrRateLimited))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Next()
	}
}
