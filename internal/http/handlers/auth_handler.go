// Telegram sign-in HTTP handlers.
//
// This file exposes the login-code endpoints:
//   - POST /auth/telegram/send-code   (deliver a code to the user's bot chat)
//   - POST /auth/telegram/verify-code (exchange phone+code for the user)
//   - POST /auth/telegram/welcome     (post-login welcome message)
//
// Error responses deliberately do not reveal whether a phone is registered
// beyond what the flow already requires.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stigerapp/go-rental-backend/internal/services"
)

// SendCodeRequest is the JSON payload for requesting a login code.
type SendCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyCodeRequest is the JSON payload for verifying a login code.
type VerifyCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// SendCode generates a one-time login code and delivers it to the Telegram
// chat bound to the phone.
func (h *Handlers) SendCode(c *gin.Context) {
	var req SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Phone) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone required")
		return
	}

	err := h.authSvc.SendCode(c.Request.Context(), req.Phone)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"sent": true})
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid phone")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Номер не зарегистрирован. Напишите боту /start.")
	case errors.Is(err, services.ErrDeliveryFailed):
		fail(c, http.StatusBadGateway, ErrCodeDeliveryFailed, "Не удалось отправить код. Попробуйте позже.")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// VerifyCode checks a submitted login code and returns the user on success.
func (h *Handlers) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Code) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and code required")
		return
	}

	user, err := h.authSvc.VerifyCode(c.Request.Context(), req.Phone, req.Code)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"user": user})
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and code required")
	case errors.Is(err, services.ErrCodeNotFound):
		fail(c, http.StatusNotFound, ErrCodeCodeNotFound, "Код не найден или истёк. Запросите новый.")
	case errors.Is(err, services.ErrCodeMismatch):
		fail(c, http.StatusUnauthorized, ErrCodeCodeMismatch, "Неверный код.")
	case errors.Is(err, services.ErrTooManyAttempts):
		fail(c, http.StatusTooManyRequests, ErrCodeTooManyAttempts, "Слишком много попыток. Запросите новый код.")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// Welcome sends the post-login welcome message, best-effort from the
// client's point of view.
func (h *Handlers) Welcome(c *gin.Context) {
	var req SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Phone) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone required")
		return
	}

	err := h.authSvc.Welcome(c.Request.Context(), req.Phone)
	switch {
	case err == nil:
		ok(c, http.StatusOK, gin.H{"sent": true})
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid phone")
	default:
		// Delivery problems included: the welcome message is cosmetic.
		ok(c, http.StatusOK, gin.H{"sent": false})
	}
}
