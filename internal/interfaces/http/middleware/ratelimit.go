package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolbill/backend/internal/interfaces/http/dto"
)

// RateLimiter implements an in-memory token bucket per key. Buckets refill
// continuously at limit/window and idle buckets are swept in the background.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	stop    chan struct{}
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
// for each key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request for key may proceed, consuming a token
// when it does.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b := rl.refill(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the number of whole tokens left for key.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return int(rl.refill(key).tokens)
}

// refill advances the bucket for key to now. Callers must hold mu.
func (rl *RateLimiter) refill(key string) *bucket {
	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.limit), lastSeen: now}
		rl.buckets[key] = b
		return b
	}
	elapsed := now.Sub(b.lastSeen)
	b.tokens += elapsed.Seconds() * float64(rl.limit) / rl.window.Seconds()
	if b.tokens > float64(rl.limit) {
		b.tokens = float64(rl.limit)
	}
	b.lastSeen = now
	return b
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-2 * rl.window)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// RateLimit returns a middleware limiting requests per client IP.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(rl, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByKey returns a middleware limiting requests per key derived
// from the request.
func RateLimitByKey(rl *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		if !rl.Allow(key) {
			c.Writer.Header().Set("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.CodeRateLimited, "Too many requests, please try again later", GetRequestID(c)))
			return
		}
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))

		c.Next()
	}
}
