// Package domain defines the persistence models for rental orders, payment
// transactions, and saved cards. These types are mapped with GORM and form
// the durable ledger the confirmation flow relies on: repeated webhook
// delivery must never double-unlock hardware or double-charge a card, and
// every guarantee behind that starts with the rows defined here.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus enumerates the rental order lifecycle. Transitions are
// monotonic: pending → active → completed, with cancelled/failed reachable
// from pending or active on error paths. Terminal states are completed,
// cancelled, and failed; no transition ever moves backward.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Order represents a single power-bank rental. An order is created in
// "pending" when the user picks a tariff for an available cabinet, becomes
// "active" exactly once when payment is captured and the hardware platform
// confirms a rent order, and completes when the battery is returned.
//
// Fields:
//   - ID: stable UUID primary key (char(36)); doubles as the payment
//     gateway InvoiceId.
//   - UserID: owner reference; indexed for listing.
//   - DeviceID / ShopID: target cabinet and its shop on the IoT platform.
//   - TariffID: selected tariff (see services tariff catalog).
//   - TariffPrice / DepositAmount: minor currency units, immutable after
//     creation.
//   - Status: lifecycle state (see OrderStatus).
//   - RentOrderID: hardware-side order id (tradeNo); set exactly once, on
//     the transition into "active".
//   - SlotNum: cabinet slot the battery was dispensed from, when known.
//   - FailReason: machine-readable reason for failed/cancelled orders.
//   - StartTime / EndTime: rental window; StartTime set on activation,
//     EndTime on settlement.
type Order struct {
	ID            string      `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string      `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_user_orders"`
	DeviceID      string      `json:"device_id"      gorm:"type:varchar(64);not null"`
	ShopID        string      `json:"shop_id"        gorm:"type:varchar(64);not null"`
	TariffID      string      `json:"tariff_id"      gorm:"type:varchar(32);not null"`
	TariffPrice   int64       `json:"tariff_price"   gorm:"not null"`
	DepositAmount int64       `json:"deposit_amount" gorm:"not null"`
	Status        OrderStatus `json:"status"         gorm:"type:varchar(16);not null;index;check:status IN ('pending','active','completed','cancelled','failed')"`
	RentOrderID   *string     `json:"rent_order_id,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	SlotNum       int         `json:"slot_num,omitempty"`
	FailReason    string      `json:"fail_reason,omitempty" gorm:"type:varchar(64)"`
	StartTime     *time.Time  `json:"start_time,omitempty"`
	EndTime       *time.Time  `json:"end_time,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// TransactionStatus enumerates payment transaction outcomes.
type TransactionStatus string

const (
	TransactionAuthorized TransactionStatus = "authorized"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionFailed     TransactionStatus = "failed"
)

// Transaction records one interaction with the payment gateway for an order
// (the initial authorization/capture, and a later tariff settlement).
// Rows are append-only: only Status may change after creation. An order may
// own several transactions, but a given gateway transaction id is recorded
// at most once per order — that unique index is what makes retried webhook
// deliveries harmless.
type Transaction struct {
	ID           string            `json:"id"             gorm:"type:char(36);primaryKey"`
	OrderID      string            `json:"order_id"       gorm:"type:char(36);not null;index;uniqueIndex:ux_order_ext_tx,priority:1"`
	ExternalTxID string            `json:"external_tx_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_order_ext_tx,priority:2"`
	AccountID    string            `json:"account_id"     gorm:"type:varchar(64);not null;index"`
	Amount       int64             `json:"amount"         gorm:"not null"`
	Currency     string            `json:"currency"       gorm:"type:varchar(8);not null"`
	Status       TransactionStatus `json:"status"         gorm:"type:varchar(16);not null;check:status IN ('authorized','completed','failed')"`
	Description  string            `json:"description"    gorm:"type:varchar(255)"`
	CardToken    string            `json:"-"              gorm:"type:varchar(128)"`
	CardLastFour string            `json:"card_last_four,omitempty" gorm:"type:varchar(4)"`
	CreatedAt    time.Time         `json:"created_at"`

	// Order is the owning rental. Rows follow the order if it is ever
	// removed; in practice orders are never hard-deleted.
	Order Order `json:"-" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// SavedCard is a gateway-issued card token bound to an account. The token is
// the natural key. AccountID is the id space under which the gateway groups
// a user's cards: the value used to bind a card must exactly match the value
// later used to list or charge it, so it is always derived from the User row
// by one function and never recomputed ad hoc.
type SavedCard struct {
	Token        string         `json:"token"          gorm:"type:varchar(128);primaryKey"`
	AccountID    string         `json:"account_id"     gorm:"type:varchar(64);not null;index:idx_account_cards"`
	UserID       string         `json:"user_id"        gorm:"type:varchar(64);not null;index"`
	CardFirstSix string         `json:"card_first_six" gorm:"type:varchar(6)"`
	CardLastFour string         `json:"card_last_four" gorm:"type:varchar(4)"`
	CardType     string         `json:"card_type"      gorm:"type:varchar(32)"`
	CardExpDate  string         `json:"card_exp_date"  gorm:"type:varchar(8)"`
	Issuer       string         `json:"issuer"         gorm:"type:varchar(64)"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for SavedCard.
func (SavedCard) TableName() string { return "saved_cards" }
