// Package services – CardService
//
// Saved cards live in two places: the payment gateway (the source of truth
// for tokens) and the local ledger (what the rental flow reads). This
// service keeps the ledger converged with the gateway: binding webhooks
// write through, listings merge gateway state in, and unbinding removes
// the token from both sides.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/gateway/cloudpayments"
	"github.com/stigerapp/go-rental-backend/internal/repo"
)

// CardService manages saved payment methods.
type CardService struct {
	DB       *gorm.DB
	Payments PaymentGateway
}

// SaveFromEvent persists the card token carried by an authorization
// webhook. The event's account id is resolved back to a user when
// possible; unresolvable accounts are stored with an empty user id so the
// token is still usable for charges.
func (s *CardService) SaveFromEvent(ctx context.Context, ev *cloudpayments.Event) error {
	if !ev.SavedCard() || ev.AccountID == "" {
		return nil
	}
	userID := ""
	if u, err := ResolveUserByAccountID(ctx, s.DB, ev.AccountID); err == nil {
		userID = u.ID
	}
	_, err := repo.UpsertSavedCard(ctx, s.DB, domain.SavedCard{
		Token:        ev.Token,
		AccountID:    ev.AccountID,
		UserID:       userID,
		CardFirstSix: ev.CardFirstSix,
		CardLastFour: ev.CardLastFour,
		CardType:     ev.CardType,
		CardExpDate:  ev.CardExpDate,
		Issuer:       ev.Issuer,
	})
	if err != nil {
		return fmt.Errorf("save card from event: %w", err)
	}
	log.Info().
		Str("account_id", ev.AccountID).
		Str("card_last_four", ev.CardLastFour).
		Msg("card bound")
	return nil
}

// List returns the saved cards for an account, merging any gateway-side
// cards the ledger does not know about yet. Gateway unavailability degrades
// to the ledger view rather than an error.
func (s *CardService) List(ctx context.Context, accountID string) ([]domain.SavedCard, error) {
	if accountID == "" {
		return nil, ErrValidation
	}
	cards, err := repo.ListSavedCards(ctx, s.DB, accountID)
	if err != nil {
		return nil, err
	}

	gwCards, res, err := s.Payments.ListCards(ctx, accountID)
	if err != nil || res == nil || !res.OK {
		if err != nil {
			log.Warn().Err(err).Str("account_id", accountID).Msg("gateway card list failed")
		}
		return cards, nil
	}

	known := make(map[string]bool, len(cards))
	for _, c := range cards {
		known[c.Token] = true
	}
	for _, c := range gwCards {
		if known[c.Token] {
			continue
		}
		saved, err := repo.UpsertSavedCard(ctx, s.DB, domain.SavedCard{
			Token:        c.Token,
			AccountID:    accountID,
			CardFirstSix: c.CardFirstSix,
			CardLastFour: c.CardLastFour,
			CardType:     c.CardType,
			CardExpDate:  c.CardExpDate,
			Issuer:       c.Issuer,
		})
		if err != nil {
			return nil, err
		}
		cards = append(cards, *saved)
	}
	return cards, nil
}

// Unbind removes a saved card from the gateway and the ledger. The gateway
// call runs first: a token removed locally but still live remotely would
// keep charging.
func (s *CardService) Unbind(ctx context.Context, accountID, token string) error {
	if accountID == "" || token == "" {
		return ErrValidation
	}
	res, err := s.Payments.UnbindCard(ctx, accountID, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	}
	if !res.OK {
		return fmt.Errorf("%w: %s", ErrGatewayRejected, res.Message)
	}
	if err := repo.DeleteSavedCard(ctx, s.DB, accountID, token); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCardNotFound
		}
		return err
	}
	return nil
}
