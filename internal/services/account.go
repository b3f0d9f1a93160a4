// Package services – account identity.
//
// The payment gateway groups saved cards by an opaque AccountId. The id
// used to bind a card must exactly match the id later used to list or
// charge it, or the gateway will simply not find the card. That makes the
// derivation below a cross-system consistency point: it is the ONLY place
// an account id may be computed, and every call site (widget payload,
// card listing, settlement charge) goes through it.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/repo"
)

// AccountID derives the payment-gateway account id for a user. Precedence
// is fixed: internal id, then Telegram id, then phone. The derivation is a
// pure function of the user row, so the same user always maps to the same
// account id regardless of which identity the current request arrived with.
func AccountID(u *domain.User) string {
	switch {
	case u == nil:
		return ""
	case u.ID != "":
		return u.ID
	case u.TelegramID != nil:
		return fmt.Sprintf("telegram_%d", *u.TelegramID)
	case u.Phone != nil:
		return *u.Phone
	}
	return ""
}

// ResolveUserByAccountID inverts AccountID for inbound webhook payloads,
// trying each identity shape in the same precedence order the derivation
// uses. Returns repo.ErrNotFound when no user matches.
func ResolveUserByAccountID(ctx context.Context, db *gorm.DB, accountID string) (*domain.User, error) {
	if accountID == "" {
		return nil, repo.ErrNotFound
	}
	if u, err := repo.GetUser(ctx, db, accountID); err == nil {
		return u, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if rest, ok := strings.CutPrefix(accountID, "telegram_"); ok {
		if tid, err := strconv.ParseInt(rest, 10, 64); err == nil {
			if u, err := repo.GetUserByTelegramID(ctx, db, tid); err == nil {
				return u, nil
			} else if err != gorm.ErrRecordNotFound {
				return nil, err
			}
		}
	}
	return repo.GetUserByPhone(ctx, db, accountID)
}
