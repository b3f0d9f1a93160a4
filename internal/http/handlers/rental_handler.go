// Rental HTTP handlers.
//
// This file exposes REST endpoints for rental orders:
//   - POST /rentals              (create pending order + widget payload)
//   - POST /rentals/{id}/confirm (client-driven confirmation)
//   - GET  /rentals              (list, paginated, ETag support)
//   - GET  /rentals/{id}         (single order)
//   - GET  /tariffs              (plan catalog)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/gateway/cloudpayments"
	"github.com/stigerapp/go-rental-backend/internal/gateway/telegram"
	"github.com/stigerapp/go-rental-backend/internal/http/middleware"
	"github.com/stigerapp/go-rental-backend/internal/repo"
	"github.com/stigerapp/go-rental-backend/internal/services"
	"github.com/stigerapp/go-rental-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// RentalService defines rental-order lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RentalService interface {
	// Create validates availability and persists a pending order.
	Create(ctx context.Context, in services.CreateInput) (*services.CreateResult, error)
	// Confirm runs the idempotent confirmation sequence for a pending order.
	Confirm(ctx context.Context, in services.ConfirmInput) (*services.ConfirmResult, error)
	// Settle processes a battery return reported by the hardware platform.
	Settle(ctx context.Context, rentOrderID string, returnedAt time.Time) (*services.SettleResult, error)
	// HandleEvent dispatches a classified payment webhook event.
	HandleEvent(ctx context.Context, ev *cloudpayments.Event)
	// Get returns a single order.
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	// ListPage returns a page of a user's orders and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error)
}

// CardService defines saved-card operations consumed by HTTP handlers.
type CardService interface {
	// SaveFromEvent persists the card token carried by a binding webhook.
	SaveFromEvent(ctx context.Context, ev *cloudpayments.Event) error
	// List returns the account's saved cards, merged with gateway state.
	List(ctx context.Context, accountID string) ([]domain.SavedCard, error)
	// Unbind removes a card from the gateway and the local ledger.
	Unbind(ctx context.Context, accountID, token string) error
}

// AuthService defines the Telegram sign-in operations consumed by HTTP
// handlers.
type AuthService interface {
	// SendCode delivers a login code to the phone's Telegram chat.
	SendCode(ctx context.Context, phone string) error
	// VerifyCode checks a submitted code and returns the user on success.
	VerifyCode(ctx context.Context, phone, code string) (*domain.User, error)
	// Welcome sends the post-login welcome message.
	Welcome(ctx context.Context, phone string) error
	// HandleUpdate processes one inbound bot webhook update.
	HandleUpdate(ctx context.Context, upd *telegram.Update)
}

// LocationService defines the cabinet-map operations consumed by HTTP
// handlers.
type LocationService interface {
	// List returns all known locations with refreshed availability.
	List(ctx context.Context) ([]domain.Location, error)
}

//
// Handler wiring
//

// WebhookSecrets carries the shared secrets inbound webhooks are verified
// against.
type WebhookSecrets struct {
	// CloudPayments is the API secret HMAC signatures are computed with.
	CloudPayments string
	// Bajie authenticates battery-return callbacks; empty disables the check.
	Bajie string
}

// Handlers groups HTTP endpoints for rentals, cards, sign-in, locations,
// devices, and inbound webhooks. It depends on abstract service interfaces
// to keep transport concerns separate from business logic.
type Handlers struct {
	rentalSvc RentalService
	cardSvc   CardService
	authSvc   AuthService
	locSvc    LocationService
	hardware  services.HardwareGateway
	secrets   WebhookSecrets
}

// New constructs and returns a Handlers instance bound to the given services.
func New(rentalSvc RentalService, cardSvc CardService, authSvc AuthService, locSvc LocationService, hardware services.HardwareGateway, secrets WebhookSecrets) *Handlers {
	return &Handlers{
		rentalSvc: rentalSvc,
		cardSvc:   cardSvc,
		authSvc:   authSvc,
		locSvc:    locSvc,
		hardware:  hardware,
		secrets:   secrets,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateRentalRequest is the JSON payload for creating a rental order.
type CreateRentalRequest struct {
	// DeviceID identifies the cabinet the battery will come from.
	DeviceID string `json:"deviceId" binding:"required"`
	// TariffID selects the pricing plan; unknown ids fall back to the
	// default plan.
	TariffID string `json:"tariffId"`
}

// ConfirmRentalRequest is the JSON payload for the client-driven
// confirmation path.
type ConfirmRentalRequest struct {
	// TransactionID is the gateway authorization id from the widget.
	TransactionID string `json:"transactionId" binding:"required"`
	// SlotNum optionally pins the slot to eject from.
	SlotNum int `json:"slotNum"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListRentalsResponse wraps a page of orders and pagination information.
type ListRentalsResponse struct {
	Rentals    []domain.Order `json:"rentals"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

//
// Handlers
//

// CreateRental creates a pending order for the current user and returns the
// order, the payment-widget payload, and a snapshot of the cabinet. An
// Idempotency-Key header makes retries return the originally created order.
func (h *Handlers) CreateRental(c *gin.Context) {
	var req CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.rentalSvc.Create(c.Request.Context(), services.CreateInput{
		UserID:         userID(c),
		DeviceID:       strings.TrimSpace(req.DeviceID),
		TariffID:       strings.TrimSpace(req.TariffID),
		IdempotencyKey: key,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deviceId required")
		case errors.Is(err, services.ErrDeviceUnavailable):
			fail(c, http.StatusConflict, ErrCodeDeviceUnavailable, "Устройство недоступно. Попробуйте другую станцию.")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	status := http.StatusCreated
	if res.Replay {
		status = http.StatusOK
	}
	ok(c, status, res)
}

// ConfirmRental runs the confirmation sequence for a pending order. Safe to
// retry: a concurrent or repeated confirmation reads as "already processed".
func (h *Handlers) ConfirmRental(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	var req ConfirmRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TransactionID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "transactionId required")
		return
	}

	res, err := h.rentalSvc.Confirm(c.Request.Context(), services.ConfirmInput{
		OrderID:       orderID,
		TransactionID: strings.TrimSpace(req.TransactionID),
		SlotNum:       req.SlotNum,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		case errors.Is(err, services.ErrNoPaymentMethod):
			fail(c, http.StatusConflict, ErrCodeNoPaymentMethod, services.MsgNoPaymentMethod)
		case errors.Is(err, services.ErrPaymentConfirmFailed):
			fail(c, http.StatusBadGateway, ErrCodePaymentConfirmFailed, "Не удалось подтвердить оплату. Попробуйте ещё раз.")
		case errors.Is(err, services.ErrHardwareOrderFailed):
			fail(c, http.StatusBadGateway, ErrCodeHardwareOrderFailed, "Станция не ответила. Оплата отменена.")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// GetRental returns a single order owned by the current user.
func (h *Handlers) GetRental(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "order id must be a UUID")
		return
	}

	order, err := h.rentalSvc.Get(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if order.UserID != userID(c) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		return
	}
	ok(c, http.StatusOK, order)
}

// ListRentals returns a page of the user's orders, most recent first.
// Supports weak ETag via If-None-Match and may return 304.
func (h *Handlers) ListRentals(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.rentalSvc.(*services.RentalService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.OrdersStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"rentals:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.rentalSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListRentalsResponse{
		Rentals: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// ListTariffs returns the plan catalog for the pricing screen. The catalog
// is fixed at build time, so the response is freely cacheable.
func (h *Handlers) ListTariffs(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"tariffs": services.Tariffs()})
}
