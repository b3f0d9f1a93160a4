// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// UpsertTelegramUser creates or refreshes a user identified by Telegram id.
// Profile fields (name, username, phone) are updated in place; the internal
// id is stable across updates.
func UpsertTelegramUser(ctx context.Context, db *gorm.DB, telegramID int64, firstName, lastName, username string, phone *string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
			"updated_at": time.Now().UTC(),
		}
		if phone != nil {
			updates["phone"] = *phone
		}
		if err := db.WithContext(ctx).Model(&u).Updates(updates).Error; err != nil {
			return nil, err
		}
		return GetUser(ctx, db, u.ID)
	case err == gorm.ErrRecordNotFound:
		tid := telegramID
		u = domain.User{
			ID:         uuid.NewString(),
			TelegramID: &tid,
			Phone:      phone,
			FirstName:  firstName,
			LastName:   lastName,
			Username:   username,
			CreatedAt:  time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, err
		}
		return &u, nil
	default:
		return nil, err
	}
}

// GetUser fetches a user by internal id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByTelegramID fetches a user by Telegram id, or ErrNotFound.
func GetUserByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByPhone fetches a user by phone number, or ErrNotFound.
func GetUserByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("phone = ?", phone).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
