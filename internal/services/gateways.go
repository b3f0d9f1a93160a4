// Package services – external collaborator contracts.
//
// Services depend on narrow interfaces rather than the concrete gateway
// clients so that orchestration logic can be exercised against fakes.
package services

import (
	"context"

	"github.com/stigerapp/go-rental-backend/internal/gateway/bajie"
	"github.com/stigerapp/go-rental-backend/internal/gateway/cloudpayments"
)

// PaymentGateway is the slice of the CloudPayments client the services use.
type PaymentGateway interface {
	// Confirm captures a previously authorized hold. Double-captures read
	// as success.
	Confirm(ctx context.Context, transactionID string, amount int64) (*cloudpayments.Result, error)
	// Void releases a hold; used as compensation.
	Void(ctx context.Context, transactionID string) (*cloudpayments.Result, error)
	// ChargeByToken performs an off-session charge against a saved card.
	ChargeByToken(ctx context.Context, token, accountID string, amount int64, currency, invoiceID, description string) (*cloudpayments.Result, error)
	// ListCards returns saved cards; the vendor's not-found reads as empty.
	ListCards(ctx context.Context, accountID string) ([]cloudpayments.Card, *cloudpayments.Result, error)
	// UnbindCard removes a saved card token.
	UnbindCard(ctx context.Context, accountID, token string) (*cloudpayments.Result, error)
}

// HardwareGateway is the slice of the cabinet-platform client the services
// use.
type HardwareGateway interface {
	// QueryDevice fetches live cabinet state.
	QueryDevice(ctx context.Context, deviceID string) (*bajie.Device, error)
	// CreateRentOrder registers dispense intent and returns the platform
	// order id.
	CreateRentOrder(ctx context.Context, deviceID, callbackURL string) (string, error)
	// EjectBattery opens a physical slot.
	EjectBattery(ctx context.Context, cabinetID, rentOrderID string, slotNum int) error
	// CompleteOrder closes a rent order after settlement.
	CompleteOrder(ctx context.Context, rentOrderID string) error
}

// Notifier sends best-effort user notifications. Implementations report
// delivery as a bool and never error.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) bool
}
