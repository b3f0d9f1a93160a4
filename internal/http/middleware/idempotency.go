// This file is the transport half of idempotent order creation: it validates
// the Idempotency-Key header, stashes the key in the Gin context, and flags
// replays so the rate limiter does not charge a client for retrying the same
// rental. Persistence of keys and stored responses stays in the service
// layer; this middleware only consults it through a narrow lookup function.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey names the request header clients send on unsafe
// operations. The storefront reuses the same value across retries of one
// rental attempt, which is what makes deduplication possible.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys for idempotency state. Unexported on purpose; read them
// through GetIdempotencyKey / IsReplay.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // true to skip rate limiting
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator,
// with ok reporting presence. Handlers read the key from here rather than the
// raw header, so they only ever see values that passed validation.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed operation for this
// (user, key) pair. Handlers use it to serve the persisted result instead of
// creating a second order.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions tunes header validation. TTL is not a transport concern;
// the lookup decides whether a stored key is still live.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil installs a token-style
	// pattern: letters, digits, and ._~-: only.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether a still-valid completed result exists for
// (userID, key) at now. Errors mean the lookup itself failed and must not
// block the request; the caller falls through to normal processing.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator wires the header into the request context.
//
// An absent header makes the middleware a no-op. A malformed header is a 400
// before any handler runs. A valid header gets stashed, and when the lookup
// recognises a replay the middleware sets both the replay flag and the
// rate-bypass flag the limiter honours. The middleware never serves a cached
// payload itself; handlers stay in charge of how replays are answered.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			now := time.Now().UTC()
			if exists, _ := lookup(c.Request.Context(), userIDFromCtx(c), key, now); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx resolves the caller identity: the "userID" context value when
// auth middleware set one, then the X-User-ID header the storefront client
// sends, then "demo-user" so local development works without auth.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if s := c.GetHeader("X-User-ID"); s != "" {
		return s
	}
	return "demo-user"
}
