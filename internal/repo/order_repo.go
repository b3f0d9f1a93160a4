// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order
// model — the heart of the idempotency ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an order is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - TransitionOrder returns ErrConflict when the persisted status does not
//     match the expected one — the optimistic-concurrency guard that keeps
//     concurrent webhook retries from double-dispensing hardware.
//   - On other DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConflict is returned by TransitionOrder when the order exists but its
// persisted status differs from the expected one. Callers treat it as
// "already processed" rather than a failure.
var ErrConflict = errors.New("order status conflict")

// CreateOrderInput carries the immutable attributes of a new pending order.
type CreateOrderInput struct {
	UserID        string
	DeviceID      string
	ShopID        string
	TariffID      string
	TariffPrice   int64
	DepositAmount int64
}

// OrderPatch lists the optional fields a status transition may set. Nil
// fields are left untouched.
type OrderPatch struct {
	RentOrderID *string
	SlotNum     *int
	FailReason  *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// CreateOrder inserts a new Order row in status "pending". The order ID is
// a randomly generated UUID (string) and CreatedAt is set to UTC.
func CreateOrder(ctx context.Context, db *gorm.DB, in CreateOrderInput) (*domain.Order, error) {
	o := &domain.Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		DeviceID:      in.DeviceID,
		ShopID:        in.ShopID,
		TariffID:      in.TariffID,
		TariffPrice:   in.TariffPrice,
		DepositAmount: in.DepositAmount,
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder fetches a single order by its ID, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByRentOrderID resolves an order by the hardware-side order id
// (tradeNo), used when the cabinet platform reports a battery return.
func GetOrderByRentOrderID(ctx context.Context, db *gorm.DB, rentOrderID string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("rent_order_id = ?", rentOrderID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOrders returns the total number of orders owned by userID.
func CountOrders(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListOrdersPage returns a paginated slice of a user's orders, most recent
// first. Use CountOrders to obtain the total for pagination metadata.
func ListOrdersPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TransitionOrder moves an order from the expected status to the next one,
// applying the patch in the same statement. The guard is a single
// conditional UPDATE (WHERE id AND status), never read-then-write: two
// concurrent callers racing pending→active cannot both win, which is the
// serialization point the whole confirmation flow hangs on.
//
// Returns the refreshed order on success, ErrConflict when the row exists
// with a different status, and ErrNotFound when there is no such order.
func TransitionOrder(ctx context.Context, db *gorm.DB, id string, from, to domain.OrderStatus, patch OrderPatch) (*domain.Order, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if patch.RentOrderID != nil {
		updates["rent_order_id"] = *patch.RentOrderID
	}
	if patch.SlotNum != nil {
		updates["slot_num"] = *patch.SlotNum
	}
	if patch.FailReason != nil {
		updates["fail_reason"] = *patch.FailReason
	}
	if patch.StartTime != nil {
		updates["start_time"] = *patch.StartTime
	}
	if patch.EndTime != nil {
		updates["end_time"] = *patch.EndTime
	}

	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a lost race from a missing order.
		if _, err := GetOrder(ctx, db, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return GetOrder(ctx, db, id)
}
