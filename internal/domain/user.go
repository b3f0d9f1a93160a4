// Package domain defines the core persistence models for the application.
// This file holds the user identity model and the durable login codes that
// back the Telegram sign-in flow.
package domain

import "time"

// User is the join point between order ownership and payment-gateway card
// grouping. A user carries at least one external identity: a Telegram id,
// a phone number, or both. Each is unique when present.
type User struct {
	ID         string  `json:"id"          gorm:"type:char(36);primaryKey"`
	TelegramID *int64  `json:"telegram_id,omitempty" gorm:"uniqueIndex"`
	Phone      *string `json:"phone,omitempty"       gorm:"type:varchar(32);uniqueIndex"`
	FirstName  string  `json:"first_name"  gorm:"type:varchar(64)"`
	LastName   string  `json:"last_name,omitempty"  gorm:"type:varchar(64)"`
	Username   string  `json:"username,omitempty"   gorm:"type:varchar(64)"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (User) TableName() string { return "users" }

// AuthCode is a one-time login code delivered over Telegram, keyed by the
// phone number it was requested for. Codes live in the database rather than
// process memory so that verification survives restarts and works behind
// multiple server instances.
type AuthCode struct {
	Phone      string    `gorm:"type:varchar(32);primaryKey"`
	Code       string    `gorm:"type:varchar(8);not null"`
	TelegramID int64     `gorm:"not null"`
	Attempts   int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (AuthCode) TableName() string { return "auth_codes" }
