// Package services – AuthService
//
// Telegram-based sign-in: the user registers by sharing a contact with the
// bot, then logs into the storefront by requesting a 6-digit code to that
// phone, delivered through the bot chat. Codes are durable rows, single-use,
// expire after 5 minutes, and allow 3 verification attempts.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/gateway/telegram"
	"github.com/stigerapp/go-rental-backend/internal/repo"
)

const (
	authCodeTTL         = 5 * time.Minute
	authCodeMaxAttempts = 3
)

// AuthService implements the Telegram registration and login-code flows.
type AuthService struct {
	DB       *gorm.DB
	Notifier Notifier
}

// SendCode generates a login code for the phone and delivers it through the
// bot chat. The phone must belong to a registered user with a Telegram
// identity — codes have nowhere else to go.
func (s *AuthService) SendCode(ctx context.Context, phone string) error {
	phone = normalizePhone(phone)
	if phone == "" {
		return ErrValidation
	}
	user, err := repo.GetUserByPhone(ctx, s.DB, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.TelegramID == nil {
		return ErrDeliveryFailed
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := repo.PutAuthCode(ctx, s.DB, phone, code, *user.TelegramID, authCodeTTL); err != nil {
		return err
	}
	if !s.Notifier.SendMessage(ctx, *user.TelegramID, telegram.AuthCodeMessage(user.FirstName, code), nil) {
		// Undo the code so a later retry is not bound by this attempt's TTL.
		_ = repo.DeleteAuthCode(ctx, s.DB, phone)
		return ErrDeliveryFailed
	}
	log.Info().Str("phone", maskPhone(phone)).Msg("login code sent")
	return nil
}

// VerifyCode checks a submitted code. Success consumes the code and returns
// the user; a third mismatch invalidates the code.
func (s *AuthService) VerifyCode(ctx context.Context, phone, code string) (*domain.User, error) {
	phone = normalizePhone(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return nil, ErrValidation
	}
	rec, err := repo.GetAuthCode(ctx, s.DB, phone, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if rec.Attempts >= authCodeMaxAttempts {
		_ = repo.DeleteAuthCode(ctx, s.DB, phone)
		return nil, ErrTooManyAttempts
	}
	if rec.Code != code {
		attempts, err := repo.BumpAuthCodeAttempts(ctx, s.DB, phone)
		if err == nil && attempts >= authCodeMaxAttempts {
			_ = repo.DeleteAuthCode(ctx, s.DB, phone)
			return nil, ErrTooManyAttempts
		}
		return nil, ErrCodeMismatch
	}
	if err := repo.DeleteAuthCode(ctx, s.DB, phone); err != nil {
		return nil, err
	}

	return repo.GetUserByPhone(ctx, s.DB, phone)
}

// Welcome sends the post-login welcome message. The storefront calls this
// after a successful verification; delivery is best-effort.
func (s *AuthService) Welcome(ctx context.Context, phone string) error {
	phone = normalizePhone(phone)
	if phone == "" {
		return ErrValidation
	}
	user, err := repo.GetUserByPhone(ctx, s.DB, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.TelegramID == nil {
		return ErrDeliveryFailed
	}
	s.Notifier.SendMessage(ctx, *user.TelegramID, telegram.WelcomeMessage(user.FirstName), nil)
	return nil
}

// HandleUpdate processes one inbound bot webhook update: /start asks for a
// contact, a shared contact completes registration. Anything else is
// ignored. Errors are logged, never returned — the Bot API retries on
// non-200 and the flow is conversational anyway.
func (s *AuthService) HandleUpdate(ctx context.Context, upd *telegram.Update) {
	if upd == nil || upd.Message == nil || upd.Message.From == nil {
		return
	}
	msg := upd.Message
	from := msg.From

	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		if _, err := repo.UpsertTelegramUser(ctx, s.DB, from.ID, from.FirstName, from.LastName, from.Username, nil); err != nil {
			log.Error().Err(err).Int64("telegram_id", from.ID).Msg("telegram: upsert user on /start")
			return
		}
		keyboard := telegram.ReplyKeyboardMarkup{
			Keyboard: [][]telegram.ReplyKeyboardButton{
				{{Text: "📱 Поделиться номером", RequestContact: true}},
			},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
		s.Notifier.SendMessage(ctx, msg.Chat.ID, telegram.ContactRequestMessage(from.FirstName), keyboard)

	case msg.Contact != nil:
		// Only accept the sender's own contact.
		if msg.Contact.UserID != 0 && msg.Contact.UserID != from.ID {
			return
		}
		phone := normalizePhone(msg.Contact.PhoneNumber)
		if phone == "" {
			return
		}
		if _, err := repo.UpsertTelegramUser(ctx, s.DB, from.ID, from.FirstName, from.LastName, from.Username, &phone); err != nil {
			log.Error().Err(err).Int64("telegram_id", from.ID).Msg("telegram: upsert user on contact")
			return
		}
		s.Notifier.SendMessage(ctx, msg.Chat.ID, telegram.RegistrationCompleteMessage(from.FirstName, phone), nil)
	}
}

// generateCode returns a uniform 6-digit code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// normalizePhone strips formatting down to a leading plus and digits.
func normalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteByte('+')
		}
	}
	out := b.String()
	if out != "" && out[0] != '+' {
		out = "+" + out
	}
	if len(out) < 8 {
		return ""
	}
	return out
}

// maskPhone hides the middle digits of a phone for logs.
func maskPhone(phone string) string {
	if len(phone) < 6 {
		return "***"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}
