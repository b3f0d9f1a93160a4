// Package middleware contains the Gin middleware shared by the storefront
// HTTP layer: correlation IDs, access logging, panic recovery, rate limiting,
// idempotency-key validation, security headers, and Prometheus metrics.
//
// The chain assembled by the router expects RequestID first, then Logger,
// then Recovery, so panics and error responses carry the correlation ID.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is where the correlation ID lives in the Gin context.
	requestIDKey = "requestID"
	// requestIDHeader carries the correlation ID on the wire, both directions.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps how much of the raw query string gets logged.
	maxQueryLogLength = 2048
)

// RequestID reuses the client-supplied X-Request-ID when one is present,
// otherwise mints a UUIDv4. The ID is stored in the Gin context and echoed on
// the response header so clients and support tickets can reference it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits one structured access-log line per request and plants a
// request-scoped zerolog.Logger in the Gin context under "logger", which
// handlers retrieve via LoggerFrom to tag order and payment events with the
// correlation ID.
//
// Log level follows the outcome: error for 5xx or when Gin collected errors,
// warn for 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")

		// Prefer the route template; unmatched requests (404s) fall back to
		// the raw URL path.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength). // -1 when unknown
			Logger()

		c.Set("logger", &l)

		c.Next()

		status := c.Writer.Status()
		out := l.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			out.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			out.Error().Msg("request")
		case status >= 400:
			out.Warn().Msg("request")
		default:
			out.Info().Msg("request")
		}
	}
}

// Recovery turns a handler panic into a JSON 500 with the standard error
// envelope, logging the panic value and stack first. If the handler already
// started writing a response, only the status is aborted; no body is appended
// to whatever partial payload went out.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger planted by Logger. When the
// middleware did not run (tests, background goroutines handed a bare context)
// it returns the global logger instead, so callers never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString unwraps a context value as a string, yielding "" for anything else.
func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes, marking the cut with an ellipsis. max <= 0
// disables the cap. Byte-level slicing is fine here; the value only feeds logs.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
