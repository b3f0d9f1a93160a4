// This file implements the per-client token-bucket limiter guarding the
// storefront endpoints. Buckets live in process memory, which is the right
// scope here: the service runs as a single instance per deployment, and the
// limiter exists to protect the payment and hardware gateways from a
// misbehaving storefront client, not to enforce a global quota.
//
// Inbound webhooks are mounted ahead of this middleware and are never
// limited; a payment notification must not compete with browsers for
// tokens.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity whose bucket it draws from.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated user when one is present
// in the Gin context, falling back to the client IP. Keys are prefixed so a
// user id can never collide with an address.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor pairs a bucket with its last activity, so idle entries can be
// evicted.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// gcThreshold is how many bucket lookups happen between idle-entry sweeps.
const gcThreshold = 5000

// RateLimiter hands out one token bucket per identity. Buckets are created
// on first sight and swept opportunistically during lookups, so memory
// stays bounded without a background goroutine. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with
// the given burst size per identity. A burst below 1 is coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the bucket for key, creating it when absent. The idle
// sweep runs before the lookup touches the entry, so a stale bucket is
// evicted even when it is the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= gcThreshold {
		rl.evictIdleLocked(now)
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// evictIdleLocked drops every bucket idle for at least ttl. Caller holds mu.
func (rl *RateLimiter) evictIdleLocked(now time.Time) {
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.ttl {
			delete(rl.visitors, k)
		}
	}
}

// IsRateBypass reports whether IdempotencyValidator marked this request as
// a replay. Replays already did their work once; serving the stored answer
// must not cost a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-identity bucket, answering 429 with a compact
// JSON body and a Retry-After hint when the bucket is empty.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
