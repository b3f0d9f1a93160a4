// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Transaction model.
//
// Transactions are the append-only audit trail of every payment-gateway
// interaction. The (order_id, external_tx_id) unique index is what dedups
// retried webhook deliveries: recording the same gateway transaction twice
// for one order surfaces as ErrDuplicate rather than a second row.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// ErrDuplicate indicates that a transaction with the same external id has
// already been recorded for this order.
var ErrDuplicate = errors.New("duplicate")

// RecordTransactionInput carries the attributes of a new transaction row.
type RecordTransactionInput struct {
	OrderID      string
	ExternalTxID string
	AccountID    string
	Amount       int64
	Currency     string
	Status       domain.TransactionStatus
	Description  string
	CardToken    string
	CardLastFour string
}

// RecordTransaction inserts a transaction row and returns ErrDuplicate when
// the (order_id, external_tx_id) pair already exists.
func RecordTransaction(ctx context.Context, db *gorm.DB, in RecordTransactionInput) (*domain.Transaction, error) {
	t := &domain.Transaction{
		ID:           uuid.NewString(),
		OrderID:      in.OrderID,
		ExternalTxID: in.ExternalTxID,
		AccountID:    in.AccountID,
		Amount:       in.Amount,
		Currency:     in.Currency,
		Status:       in.Status,
		Description:  in.Description,
		CardToken:    in.CardToken,
		CardLastFour: in.CardLastFour,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return t, nil
}

// ListTransactions returns all transactions for an order, oldest first.
func ListTransactions(ctx context.Context, db *gorm.DB, orderID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdateTransactionStatus flips the status of a recorded transaction.
// Status is the only mutable column on a transaction row.
func UpdateTransactionStatus(ctx context.Context, db *gorm.DB, id string, status domain.TransactionStatus) error {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListFailedSettlements returns settlement transactions that could not be
// charged, for operator reconciliation.
func ListFailedSettlements(ctx context.Context, db *gorm.DB, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	q := db.WithContext(ctx).
		Where("status = ?", domain.TransactionFailed).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// isUniqueViolation detects unique-constraint failures across the error
// shapes gorm and glebarez/sqlite produce.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
