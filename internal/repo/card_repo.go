// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the SavedCard
// model.
//
// The gateway token is the natural key: card-binding webhooks may be
// redelivered, so writes are upserts keyed on the token rather than plain
// inserts.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// UpsertSavedCard inserts or refreshes a saved card row keyed by its gateway
// token. Redelivered card-binding events simply overwrite the mutable
// attributes; rebinding a previously unbound token resurrects the row.
func UpsertSavedCard(ctx context.Context, db *gorm.DB, card domain.SavedCard) (*domain.SavedCard, error) {
	card.UpdatedAt = time.Now().UTC()
	assign := clause.AssignmentColumns([]string{
		"account_id", "user_id", "card_first_six", "card_last_four",
		"card_type", "card_exp_date", "issuer", "updated_at",
	})
	assign = append(assign, clause.Assignment{Column: clause.Column{Name: "deleted_at"}, Value: nil})
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: assign,
		}).
		Create(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListSavedCards returns the cards bound under accountID, oldest first.
// An account with no cards yields an empty slice, not an error.
func ListSavedCards(ctx context.Context, db *gorm.DB, accountID string) ([]domain.SavedCard, error) {
	var out []domain.SavedCard
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// DeleteSavedCard removes a card by (accountID, token). Returns ErrNotFound
// when no such binding exists.
func DeleteSavedCard(ctx context.Context, db *gorm.DB, accountID, token string) error {
	res := db.WithContext(ctx).
		Where("account_id = ? AND token = ?", accountID, token).
		Delete(&domain.SavedCard{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
