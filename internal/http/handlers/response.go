// Package handlers implements the public JSON API of the rental storefront:
// order creation and history, saved cards, Telegram auth, locations, and the
// inbound payment and cabinet webhooks.
//
// Every endpoint answers failures with the same envelope so the storefront
// can branch on a stable code:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "no_payment_method",
//	  "message": "Привяжите карту и попробуйте снова."
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stigerapp/go-rental-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by every endpoint. Code is one
// of the constants in errors.go; Message is safe to show to users; RequestID
// echoes X-Request-ID so support can find the matching log lines.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with the standard envelope. Server-side failures
// (5xx) also go to the request-scoped log; client errors are the caller's
// problem and stay out of the error log.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail to the router, which needs the same envelope for its
// NoRoute and NoMethod responses.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
