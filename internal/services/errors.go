// Package services implements the business logic for rentals, cards, and
// Telegram sign-in. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

// Order / confirmation errors.
var (
	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrValidation is returned when a request is missing required fields
	// (device, tariff, user).
	ErrValidation = errors.New("missing required fields")

	// ErrDeviceUnavailable indicates the cabinet is offline or unknown to
	// the hardware platform.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrNoPaymentMethod is returned when confirmation finds no saved card
	// for the paying account. The authorization is voided and the order
	// failed: hardware is never dispensed for a guest authorization with no
	// card on file for future settlement.
	ErrNoPaymentMethod = errors.New("no payment method on file")

	// ErrPaymentConfirmFailed indicates the capture of the authorization
	// hold failed. The order stays pending so the confirmation can be
	// retried.
	ErrPaymentConfirmFailed = errors.New("payment confirmation failed")

	// ErrHardwareOrderFailed indicates the hardware platform refused to
	// create a rent order. The payment is voided and the order failed.
	ErrHardwareOrderFailed = errors.New("hardware order creation failed")

	// ErrDispenseFailed indicates the eject command failed after the order
	// went active. Deliberately ambiguous: the battery may or may not have
	// dispensed, so the payment is kept and the case is left for manual
	// reconciliation.
	ErrDispenseFailed = errors.New("battery dispense failed")

	// ErrOrderConflict indicates a state-transition guard violation — the
	// order was already processed by a concurrent caller. Treated as a
	// successful no-op by webhook retry logic.
	ErrOrderConflict = errors.New("order already processed")
)

// Card errors.
var (
	// ErrCardNotFound indicates the card token is not bound under the
	// account.
	ErrCardNotFound = errors.New("card not found")

	// ErrGatewayRejected indicates the payment gateway declined a card
	// management request.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
)

// Sign-in errors.
var (
	// ErrUserNotFound indicates no registered user matches the supplied
	// identity.
	ErrUserNotFound = errors.New("user not found")

	// ErrCodeNotFound indicates no pending login code exists for the phone
	// (never requested, expired and purged, or already consumed).
	ErrCodeNotFound = errors.New("code not found or expired")

	// ErrCodeMismatch indicates the submitted code does not match.
	ErrCodeMismatch = errors.New("code mismatch")

	// ErrTooManyAttempts indicates the attempt budget for the pending code
	// is exhausted; the code is invalidated.
	ErrTooManyAttempts = errors.New("too many attempts")

	// ErrDeliveryFailed indicates the messaging API did not accept the
	// login code message.
	ErrDeliveryFailed = errors.New("could not deliver code")
)
