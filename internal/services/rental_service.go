// Package services – RentalService
//
// This file implements the rental confirmation orchestrator. Two entry
// points converge here: the payment gateway's "Authorized" webhook and the
// client's own confirm call after the payment widget succeeds. Both run the
// same idempotent sequence: validate the order, require a payment method on
// file, capture the authorization, create a hardware rent order, flip the
// order to active (the sole serialization point), then eject the battery.
//
// Failure policy, in order of occurrence:
//   - capture fails        → order stays pending, retryable
//   - rent order fails     → payment voided, order failed
//   - activation conflict  → concurrent caller won; report "already
//     processed", no compensation
//   - eject fails          → order STAYS active with the hardware order id
//     recorded and the payment kept; voiding after a possibly-successful
//     physical dispense would hand the user hardware and a refund, so this
//     case goes to manual reconciliation instead
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/gateway/bajie"
	"github.com/stigerapp/go-rental-backend/internal/gateway/cloudpayments"
	"github.com/stigerapp/go-rental-backend/internal/gateway/telegram"
	"github.com/stigerapp/go-rental-backend/internal/repo"
)

// User-facing outcome messages. The dispense-failure text is a deliberate
// admission that the system cannot self-heal that case.
const (
	MsgDispensed        = "PowerBank выдан! Заберите его из открывшегося слота."
	MsgDispenseFailed   = "Оплата прошла, но выдача не удалась. Обратитесь в поддержку."
	MsgAlreadyProcessed = "Заказ уже обработан."
	MsgNoPaymentMethod  = "Привяжите карту и попробуйте снова."
)

// Fail reasons persisted on orders that leave the happy path.
const (
	failReasonNoPaymentMethod = "NoPaymentMethod"
	failReasonHardwareOrder   = "HardwareOrderFailed"
	failReasonPaymentEvent    = "PaymentDeclined"
)

var (
	dispenseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_dispense_failures_total",
		Help: "Eject commands that failed after the order went active (manual reconciliation queue).",
	})
	settlementFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_settlement_failures_total",
		Help: "Post-rental charges that could not be collected.",
	})
	compensationVoids = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rental_compensation_voids_total",
		Help: "Payment authorizations voided to compensate a failed confirmation step.",
	})
)

func init() {
	prometheus.MustRegister(dispenseFailures, settlementFailures, compensationVoids)
}

// RentalService orchestrates order creation, confirmation, and settlement.
// It holds no mutable state across requests: every sequence reads fresh
// rows, because card-binding webhooks race with rental confirmation in real
// deployments.
type RentalService struct {
	DB       *gorm.DB
	Payments PaymentGateway
	Hardware HardwareGateway
	Notifier Notifier

	// PublicID is the merchant public id embedded in the widget payload.
	PublicID string
	// AppURL is the public base URL hardware callbacks are routed to.
	AppURL string
	// Currency for all charges (e.g. "RUB").
	Currency string
	// IdempotencyTTL bounds how long an Idempotency-Key replays the same
	// order.
	IdempotencyTTL time.Duration
}

// CreateInput carries an order-creation request.
type CreateInput struct {
	UserID         string
	DeviceID       string
	TariffID       string
	IdempotencyKey string
}

// WidgetPayload is everything the client-side payment widget needs to run
// the authorization for this order.
type WidgetPayload struct {
	PublicID    string         `json:"publicId"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Description string         `json:"description"`
	InvoiceID   string         `json:"invoiceId"`
	AccountID   string         `json:"accountId"`
	Data        map[string]any `json:"jsonData"`
}

// DeviceSummary is the slice of cabinet state echoed back on creation.
type DeviceSummary struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	EmptySlots int    `json:"emptySlots"`
	QRCode     string `json:"qrCode,omitempty"`
}

// CreateResult is the order-creation response.
type CreateResult struct {
	Order   *domain.Order `json:"order"`
	Payment WidgetPayload `json:"payment"`
	Device  DeviceSummary `json:"device"`
	Replay  bool          `json:"-"`
}

// Create validates the request, checks the cabinet is online and has
// batteries, persists a pending order, and returns the widget payload.
// When an Idempotency-Key is supplied, a retry of the same key returns the
// originally created order instead of minting a new one.
func (s *RentalService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.UserID == "" || in.DeviceID == "" {
		return nil, ErrValidation
	}

	if in.IdempotencyKey != "" {
		if rec, err := repo.GetIdempotency(ctx, s.DB, in.UserID, in.IdempotencyKey, time.Now().UTC()); err == nil {
			return s.replayCreate(ctx, rec.OrderID)
		}
	}

	accountID := s.accountIDFor(ctx, in.UserID)
	tariff := TariffByID(in.TariffID)

	device, err := s.Hardware.QueryDevice(ctx, in.DeviceID)
	if err != nil {
		if errors.Is(err, bajie.ErrDeviceUnavailable) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, in.DeviceID)
		}
		return nil, err
	}

	order, err := repo.CreateOrder(ctx, s.DB, repo.CreateOrderInput{
		UserID:        in.UserID,
		DeviceID:      in.DeviceID,
		ShopID:        device.ShopID,
		TariffID:      tariff.ID,
		TariffPrice:   tariff.Price,
		DepositAmount: tariff.Deposit,
	})
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if _, err := repo.CreateIdempotency(ctx, s.DB, in.UserID, in.IdempotencyKey, order.ID, 0, s.IdempotencyTTL); errors.Is(err, repo.ErrDuplicate) {
			// Lost the insert race; the winner's order is the canonical one.
			if rec, err := repo.GetIdempotency(ctx, s.DB, in.UserID, in.IdempotencyKey, time.Now().UTC()); err == nil {
				return s.replayCreate(ctx, rec.OrderID)
			}
		}
		// Sweep lapsed keys on the same write path; a failed sweep only
		// means the next creation retries it.
		_ = repo.PurgeExpiredIdempotency(ctx, s.DB, time.Now().UTC())
	}

	return &CreateResult{
		Order:   order,
		Payment: s.widgetPayload(order, accountID, tariff),
		Device: DeviceSummary{
			ID:         device.CabinetID,
			Address:    device.Address,
			EmptySlots: device.EmptySlots,
			QRCode:     device.QRCode,
		},
	}, nil
}

// replayCreate rebuilds the creation response for an already-created order.
func (s *RentalService) replayCreate(ctx context.Context, orderID string) (*CreateResult, error) {
	order, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		return nil, err
	}
	accountID := s.accountIDFor(ctx, order.UserID)
	res := &CreateResult{
		Order:   order,
		Payment: s.widgetPayload(order, accountID, TariffByID(order.TariffID)),
		Replay:  true,
	}
	// Availability is advisory on replays; a dead cabinet should not block
	// returning the stored order.
	if device, err := s.Hardware.QueryDevice(ctx, order.DeviceID); err == nil {
		res.Device = DeviceSummary{
			ID:         device.CabinetID,
			Address:    device.Address,
			EmptySlots: device.EmptySlots,
			QRCode:     device.QRCode,
		}
	}
	return res, nil
}

// widgetPayload assembles the client widget parameters. The account id here
// MUST be the one later used for card listing and settlement charges; both
// go through AccountID.
func (s *RentalService) widgetPayload(order *domain.Order, accountID string, tariff Tariff) WidgetPayload {
	return WidgetPayload{
		PublicID:    s.PublicID,
		Amount:      order.TariffPrice + order.DepositAmount,
		Currency:    s.Currency,
		Description: tariff.Description + " - Stiger Power Bank",
		InvoiceID:   order.ID,
		AccountID:   accountID,
		Data: map[string]any{
			"deviceId":      order.DeviceID,
			"shopId":        order.ShopID,
			"tariffId":      order.TariffID,
			"orderType":     "rental",
			"tariffPrice":   order.TariffPrice,
			"depositAmount": order.DepositAmount,
		},
	}
}

// accountIDFor derives the gateway account id for a user id, falling back
// to the raw id when the user row is missing (guest checkout).
func (s *RentalService) accountIDFor(ctx context.Context, userID string) string {
	if u, err := repo.GetUser(ctx, s.DB, userID); err == nil {
		return AccountID(u)
	}
	return userID
}

// ConfirmInput carries a confirmation request (webhook- or client-driven).
type ConfirmInput struct {
	OrderID       string
	TransactionID string
	SlotNum       int
}

// ConfirmResult is the outcome of a confirmation attempt.
type ConfirmResult struct {
	OrderID          string `json:"orderId"`
	RentOrderID      string `json:"rentOrderId,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
	Dispensed        bool   `json:"dispensed"`
	Message          string `json:"message"`
}

// Confirm runs the confirmation sequence for a pending order. It is safe to
// call concurrently and repeatedly for the same order: the pending→active
// conditional update admits exactly one winner, and every other caller gets
// AlreadyProcessed.
func (s *RentalService) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	if in.OrderID == "" || in.TransactionID == "" {
		return nil, ErrValidation
	}

	order, err := repo.GetOrder(ctx, s.DB, in.OrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return s.alreadyProcessed(order), nil
	}

	user, _ := repo.GetUser(ctx, s.DB, order.UserID)
	accountID := order.UserID
	if user != nil {
		accountID = AccountID(user)
	}

	// Payment method must be on file before hardware moves: the deposit
	// settlement later charges a saved token. Read fresh — card-binding
	// webhooks race with this very call.
	card, err := s.paymentMethodOnFile(ctx, accountID, order.UserID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		s.voidPayment(ctx, in.TransactionID)
		s.failOrder(ctx, order.ID, failReasonNoPaymentMethod)
		return nil, ErrNoPaymentMethod
	}

	amount := order.TariffPrice + order.DepositAmount
	slot := in.SlotNum
	if slot <= 0 {
		slot = 1
	}
	callbackURL := s.AppURL + "/webhooks/bajie"

	var rentOrderID string
	steps := []SagaStep{
		{
			Name: "confirm-payment",
			Run: func(ctx context.Context) error {
				res, err := s.Payments.Confirm(ctx, in.TransactionID, amount)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrPaymentConfirmFailed, err)
				}
				if !res.OK {
					return fmt.Errorf("%w: %s", ErrPaymentConfirmFailed, res.Message)
				}
				return nil
			},
			Compensate: func(ctx context.Context) { s.voidPayment(ctx, in.TransactionID) },
		},
		{
			Name: "create-rent-order",
			Run: func(ctx context.Context) error {
				id, err := s.Hardware.CreateRentOrder(ctx, order.DeviceID, callbackURL)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrHardwareOrderFailed, err)
				}
				rentOrderID = id
				return nil
			},
		},
		{
			Name: "activate-order",
			Run: func(ctx context.Context) error {
				// Transaction row first, then the conditional transition.
				// Once the transition lands, no retry may repeat the
				// payment or hardware steps.
				_, err := repo.RecordTransaction(ctx, s.DB, repo.RecordTransactionInput{
					OrderID:      order.ID,
					ExternalTxID: in.TransactionID,
					AccountID:    accountID,
					Amount:       amount,
					Currency:     s.Currency,
					Status:       domain.TransactionCompleted,
					Description:  "rental authorization capture",
					CardToken:    card.Token,
					CardLastFour: card.CardLastFour,
				})
				if err != nil && !errors.Is(err, repo.ErrDuplicate) {
					return err
				}
				now := time.Now().UTC()
				_, err = repo.TransitionOrder(ctx, s.DB, order.ID,
					domain.OrderStatusPending, domain.OrderStatusActive,
					repo.OrderPatch{RentOrderID: &rentOrderID, SlotNum: &slot, StartTime: &now})
				if errors.Is(err, repo.ErrConflict) {
					// A concurrent caller already activated this order and
					// owns the dispense; compensating here would void a
					// payment backing a live rental.
					return Halt(ErrOrderConflict)
				}
				return err
			},
		},
	}

	if failedStep, err := RunSaga(ctx, steps); err != nil {
		switch {
		case errors.Is(err, ErrOrderConflict):
			fresh, ferr := repo.GetOrder(ctx, s.DB, order.ID)
			if ferr != nil {
				fresh = order
			}
			return s.alreadyProcessed(fresh), nil
		case errors.Is(err, ErrPaymentConfirmFailed):
			// Order stays pending: the capture can be retried.
			log.Warn().Err(err).Str("order_id", order.ID).Msg("payment capture failed")
			return nil, err
		case errors.Is(err, ErrHardwareOrderFailed):
			s.failOrder(ctx, order.ID, failReasonHardwareOrder)
			return nil, err
		default:
			log.Error().Err(err).Str("order_id", order.ID).Str("step", failedStep).Msg("confirmation failed")
			s.failOrder(ctx, order.ID, failedStep)
			return nil, err
		}
	}

	res := &ConfirmResult{
		OrderID:     order.ID,
		RentOrderID: rentOrderID,
		Dispensed:   true,
		Message:     MsgDispensed,
	}

	// Past the idempotency boundary: eject failures are ambiguous (the
	// battery may be out already) and are never compensated. The order
	// keeps its hardware id for manual reconciliation.
	if err := s.Hardware.EjectBattery(ctx, order.DeviceID, rentOrderID, slot); err != nil {
		dispenseFailures.Inc()
		log.Error().Err(err).
			Str("order_id", order.ID).
			Str("rent_order_id", rentOrderID).
			Int("slot", slot).
			Msg("battery eject failed after activation")
		res.Dispensed = false
		res.Message = MsgDispenseFailed
		return res, nil
	}

	s.notifyRental(ctx, user, order, amount)
	return res, nil
}

// alreadyProcessed builds the benign response for retried confirmations.
func (s *RentalService) alreadyProcessed(order *domain.Order) *ConfirmResult {
	res := &ConfirmResult{
		OrderID:          order.ID,
		AlreadyProcessed: true,
		Dispensed:        order.Status == domain.OrderStatusActive || order.Status == domain.OrderStatusCompleted,
		Message:          MsgAlreadyProcessed,
	}
	if order.RentOrderID != nil {
		res.RentOrderID = *order.RentOrderID
	}
	return res
}

// paymentMethodOnFile returns the first saved card for the account, looking
// at the ledger first and falling back to the gateway (the binding webhook
// may still be in flight). Gateway results are folded back into the ledger.
func (s *RentalService) paymentMethodOnFile(ctx context.Context, accountID, userID string) (*domain.SavedCard, error) {
	cards, err := repo.ListSavedCards(ctx, s.DB, accountID)
	if err != nil {
		return nil, err
	}
	if len(cards) > 0 {
		return &cards[0], nil
	}

	gwCards, res, err := s.Payments.ListCards(ctx, accountID)
	if err != nil || res == nil || !res.OK || len(gwCards) == 0 {
		if err != nil {
			log.Warn().Err(err).Str("account_id", accountID).Msg("gateway card list failed")
		}
		return nil, nil
	}
	var first *domain.SavedCard
	for _, c := range gwCards {
		saved, err := repo.UpsertSavedCard(ctx, s.DB, domain.SavedCard{
			Token:        c.Token,
			AccountID:    accountID,
			UserID:       userID,
			CardFirstSix: c.CardFirstSix,
			CardLastFour: c.CardLastFour,
			CardType:     c.CardType,
			CardExpDate:  c.CardExpDate,
			Issuer:       c.Issuer,
		})
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = saved
		}
	}
	return first, nil
}

// voidPayment releases an authorization hold, best-effort. Failures are
// logged and swallowed: compensation must never block state cleanup.
func (s *RentalService) voidPayment(ctx context.Context, transactionID string) {
	compensationVoids.Inc()
	res, err := s.Payments.Void(ctx, transactionID)
	switch {
	case err != nil:
		log.Error().Err(err).Str("transaction_id", transactionID).Msg("void failed")
	case !res.OK:
		log.Error().Str("transaction_id", transactionID).Str("reason", res.Message).Msg("void rejected")
	}
}

// failOrder transitions a pending order onto the failure path. A conflict
// means another caller resolved the order in the meantime, which is fine.
func (s *RentalService) failOrder(ctx context.Context, orderID, reason string) {
	_, err := repo.TransitionOrder(ctx, s.DB, orderID,
		domain.OrderStatusPending, domain.OrderStatusFailed,
		repo.OrderPatch{FailReason: &reason})
	if err != nil && !errors.Is(err, repo.ErrConflict) {
		log.Error().Err(err).Str("order_id", orderID).Str("reason", reason).Msg("could not fail order")
	}
}

// notifyRental sends the best-effort success message when the user has a
// Telegram identity.
func (s *RentalService) notifyRental(ctx context.Context, user *domain.User, order *domain.Order, amount int64) {
	if s.Notifier == nil || user == nil || user.TelegramID == nil {
		return
	}
	address := order.ShopID
	if loc, err := repo.ListLocations(ctx, s.DB); err == nil {
		for _, l := range loc {
			if l.DeviceID == order.DeviceID {
				address = l.Address
				break
			}
		}
	}
	text := telegram.RentalSuccessMessage(order.DeviceID, amount, address, time.Now())
	s.Notifier.SendMessage(ctx, *user.TelegramID, text, nil)
}

// HandleEvent dispatches a classified payment-gateway webhook event. It
// never returns an error: the webhook contract requires acknowledging
// processed and unprocessable events alike, and every failure here is
// either logged or already handled inside Confirm.
func (s *RentalService) HandleEvent(ctx context.Context, ev *cloudpayments.Event) {
	switch ev.Kind {
	case cloudpayments.KindCheck:
		log.Info().Str("invoice_id", ev.InvoiceID).Msg("webhook: check allowed")

	case cloudpayments.KindAuthorized:
		if ev.InvoiceID == "" || ev.TransactionID == "" {
			return
		}
		_, err := s.Confirm(ctx, ConfirmInput{
			OrderID:       ev.InvoiceID,
			TransactionID: ev.TransactionID,
			SlotNum:       ev.Data.SlotNum,
		})
		switch {
		case err == nil:
		case errors.Is(err, ErrOrderNotFound):
			// Authorizations for card-binding invoices have no order row.
			log.Info().Str("invoice_id", ev.InvoiceID).Msg("webhook: authorized event without order")
		default:
			log.Warn().Err(err).Str("invoice_id", ev.InvoiceID).Msg("webhook: confirmation failed")
		}

	case cloudpayments.KindCompleted:
		log.Info().Str("invoice_id", ev.InvoiceID).Str("transaction_id", ev.TransactionID).Msg("webhook: payment completed")

	case cloudpayments.KindCancelled, cloudpayments.KindDeclined:
		if ev.InvoiceID == "" {
			return
		}
		reason := failReasonPaymentEvent
		_, err := repo.TransitionOrder(ctx, s.DB, ev.InvoiceID,
			domain.OrderStatusPending, domain.OrderStatusCancelled,
			repo.OrderPatch{FailReason: &reason})
		if err != nil && !errors.Is(err, repo.ErrConflict) && !errors.Is(err, repo.ErrNotFound) {
			log.Error().Err(err).Str("invoice_id", ev.InvoiceID).Msg("webhook: cancel failed")
		}

	case cloudpayments.KindRefunded:
		log.Info().Str("invoice_id", ev.InvoiceID).Msg("webhook: payment refunded")

	default:
		log.Warn().Str("status", ev.Status).Msg("webhook: unknown event status")
	}
}

// SettleResult reports the outcome of a battery-return settlement.
type SettleResult struct {
	OrderID string `json:"orderId"`
	Cost    int64  `json:"cost"`
	Charged bool   `json:"charged"`
}

// Settle handles a battery-return event from the hardware platform: compute
// the elapsed-time cost, charge the first saved card, and complete the
// order. The order completes even when the charge fails — the failed
// settlement transaction row is the reconciliation queue.
//
// Before any money moves, the settlement row is inserted with the
// deterministic "settle-<orderID>" external id and an authorized status.
// The (order_id, external_tx_id) unique index admits exactly one such row,
// so concurrently delivered return events for the same rental elect a single
// settler; everyone else reads ErrOrderConflict without touching the card.
// The row's status is flipped once the charge resolves.
func (s *RentalService) Settle(ctx context.Context, rentOrderID string, returnedAt time.Time) (*SettleResult, error) {
	order, err := repo.GetOrderByRentOrderID(ctx, s.DB, rentOrderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status != domain.OrderStatusActive {
		return nil, ErrOrderConflict
	}

	start := order.CreatedAt
	if order.StartTime != nil {
		start = *order.StartTime
	}
	tariff := TariffByID(order.TariffID)
	cost := SettlementCost(tariff, returnedAt.Sub(start))

	user, _ := repo.GetUser(ctx, s.DB, order.UserID)
	accountID := order.UserID
	if user != nil {
		accountID = AccountID(user)
	}

	cardToken, cardLastFour := "", ""
	cards, err := repo.ListSavedCards(ctx, s.DB, accountID)
	if err != nil {
		return nil, err
	}
	if len(cards) > 0 {
		cardToken, cardLastFour = cards[0].Token, cards[0].CardLastFour
	}

	// Claim this settlement. A duplicate means another delivery already
	// owns it (or a crashed settler left its claim — operator territory).
	claim, err := repo.RecordTransaction(ctx, s.DB, repo.RecordTransactionInput{
		OrderID:      order.ID,
		ExternalTxID: "settle-" + order.ID,
		AccountID:    accountID,
		Amount:       cost,
		Currency:     s.Currency,
		Status:       domain.TransactionAuthorized,
		Description:  "tariff settlement",
		CardToken:    cardToken,
		CardLastFour: cardLastFour,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrOrderConflict
		}
		return nil, err
	}

	charged := false
	if cardToken != "" {
		res, err := s.Payments.ChargeByToken(ctx, cardToken, accountID, cost,
			s.Currency, order.ID+"-settle", tariff.Description+" — итоговая стоимость аренды")
		switch {
		case err != nil:
			log.Error().Err(err).Str("order_id", order.ID).Msg("settlement charge failed")
		case !res.OK:
			log.Error().Str("order_id", order.ID).Str("reason", res.Message).Msg("settlement charge declined")
		default:
			charged = true
			log.Info().Str("order_id", order.ID).
				Str("gateway_tx_id", transactionIDFromResult(res)).
				Int64("cost", cost).
				Msg("settlement charged")
		}
	} else {
		log.Error().Str("order_id", order.ID).Str("account_id", accountID).Msg("settlement without saved card")
	}
	if !charged {
		settlementFailures.Inc()
	}

	txStatus := domain.TransactionFailed
	if charged {
		txStatus = domain.TransactionCompleted
	}
	if err := repo.UpdateTransactionStatus(ctx, s.DB, claim.ID, txStatus); err != nil {
		// The claim row stays authorized; reconciliation will spot it.
		log.Error().Err(err).Str("order_id", order.ID).Str("transaction_id", claim.ID).Msg("settlement status flip failed")
	}

	end := returnedAt.UTC()
	if _, err := repo.TransitionOrder(ctx, s.DB, order.ID,
		domain.OrderStatusActive, domain.OrderStatusCompleted,
		repo.OrderPatch{EndTime: &end}); err != nil {
		if !errors.Is(err, repo.ErrConflict) {
			return nil, err
		}
		// The order left active through some other path while we held the
		// claim; the transaction row still records the charge outcome.
		log.Warn().Str("order_id", order.ID).Msg("order no longer active at settlement completion")
	}

	if err := s.Hardware.CompleteOrder(ctx, rentOrderID); err != nil {
		log.Warn().Err(err).Str("rent_order_id", rentOrderID).Msg("hardware order completion failed")
	}

	return &SettleResult{OrderID: order.ID, Cost: cost, Charged: charged}, nil
}

// Get returns a single order by id.
func (s *RentalService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := repo.GetOrder(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// ListPage returns a page of a user's orders plus the total count.
func (s *RentalService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountOrders(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}
	items, err := repo.ListOrdersPage(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// transactionIDFromResult extracts the gateway transaction id from a charge
// response, when present.
func transactionIDFromResult(res *cloudpayments.Result) string {
	if res == nil || len(res.Model) == 0 {
		return ""
	}
	var m struct {
		TransactionID json.Number `json:"TransactionId"`
	}
	if json.Unmarshal(res.Model, &m) != nil {
		return ""
	}
	return m.TransactionID.String()
}
