// This file centralizes the symbolic error codes handlers pass to fail().
// They give clients a stable, machine-readable taxonomy alongside the
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly
//     noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common
//     HTTP status semantics to aid interoperability.
//   - Domain-specific codes (e.g., no_payment_method, dispense_failed) are
//     reserved for rental-flow outcomes that cannot be conveyed by status
//     alone; the storefront branches on them to render the right screen.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeMethodNotAllowed     = "method_not_allowed"
	ErrCodeCreateFailed         = "create_failed"
	ErrCodeListFailed           = "list_failed"
	ErrCodeDeviceUnavailable    = "device_unavailable"
	ErrCodeNoPaymentMethod      = "no_payment_method"
	ErrCodePaymentConfirmFailed = "payment_confirm_failed"
	ErrCodeHardwareOrderFailed  = "hardware_order_failed"
	ErrCodeGatewayRejected      = "gateway_rejected"
	ErrCodeCodeNotFound         = "code_not_found"
	ErrCodeCodeMismatch         = "code_mismatch"
	ErrCodeTooManyAttempts      = "too_many_attempts"
	ErrCodeDeliveryFailed       = "delivery_failed"
)
