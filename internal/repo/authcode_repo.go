// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the durable
// Telegram login codes.
//
// Codes used to live in a process-global map in an earlier incarnation of
// this service; that breaks verification behind more than one instance and
// loses every pending login on restart, so they are ordinary rows now.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// PutAuthCode stores (or replaces) the pending login code for a phone
// number. Requesting a new code invalidates the previous one.
func PutAuthCode(ctx context.Context, db *gorm.DB, phone, code string, telegramID int64, ttl time.Duration) error {
	now := time.Now().UTC()
	rec := domain.AuthCode{
		Phone:      phone,
		Code:       code,
		TelegramID: telegramID,
		Attempts:   0,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "telegram_id", "attempts", "created_at", "expires_at"}),
		}).
		Create(&rec).Error
}

// GetAuthCode returns the non-expired code for a phone, or ErrNotFound.
func GetAuthCode(ctx context.Context, db *gorm.DB, phone string, now time.Time) (*domain.AuthCode, error) {
	var rec domain.AuthCode
	err := db.WithContext(ctx).
		Where("phone = ? AND expires_at > ?", phone, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BumpAuthCodeAttempts increments the failed-attempt counter and returns the
// new value.
func BumpAuthCodeAttempts(ctx context.Context, db *gorm.DB, phone string) (int, error) {
	res := db.WithContext(ctx).
		Model(&domain.AuthCode{}).
		Where("phone = ?", phone).
		Update("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var rec domain.AuthCode
	if err := db.WithContext(ctx).Where("phone = ?", phone).First(&rec).Error; err != nil {
		return 0, err
	}
	return rec.Attempts, nil
}

// DeleteAuthCode removes a code after use or exhaustion. Missing rows are
// not an error.
func DeleteAuthCode(ctx context.Context, db *gorm.DB, phone string) error {
	return db.WithContext(ctx).Where("phone = ?", phone).Delete(&domain.AuthCode{}).Error
}
