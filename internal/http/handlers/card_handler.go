// Saved-card HTTP handlers.
//
// This file exposes endpoints for payment-method management:
//   - POST /cards/list   (saved cards for an account)
//   - POST /cards/unbind (remove a card token)
//
// Both are POST: card tokens must never appear in URLs or access logs.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/services"
)

// ListCardsRequest is the JSON payload for listing saved cards. AccountID
// is optional; the authenticated user id is used when absent.
type ListCardsRequest struct {
	AccountID string `json:"accountId"`
}

// UnbindCardRequest is the JSON payload for removing a saved card.
type UnbindCardRequest struct {
	AccountID string `json:"accountId"`
	Token     string `json:"token" binding:"required"`
}

// ListCardsResponse wraps the saved cards of one account.
type ListCardsResponse struct {
	Cards []domain.SavedCard `json:"cards"`
}

// ListCards returns the account's saved cards, merged with the payment
// gateway's view. An account with no cards gets an empty list, not an error.
func (h *Handlers) ListCards(c *gin.Context) {
	var req ListCardsRequest
	// Body is optional for this endpoint.
	_ = c.ShouldBindJSON(&req)

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = userID(c)
	}

	cards, err := h.cardSvc.List(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "accountId required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if cards == nil {
		cards = []domain.SavedCard{}
	}
	ok(c, http.StatusOK, ListCardsResponse{Cards: cards})
}

// UnbindCard removes a saved card from the gateway and the local ledger.
func (h *Handlers) UnbindCard(c *gin.Context) {
	var req UnbindCardRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token required")
		return
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = userID(c)
	}

	err := h.cardSvc.Unbind(c.Request.Context(), accountID, strings.TrimSpace(req.Token))
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrCardNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "card not found")
	case errors.Is(err, services.ErrGatewayRejected):
		fail(c, http.StatusBadGateway, ErrCodeGatewayRejected, err.Error())
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "accountId and token required")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
