// Package telegram is a minimal Telegram Bot API client used for outbound
// notifications: login codes, welcome messages, and rental confirmations.
// Delivery is best-effort by contract — SendMessage reports success as a
// bool and never returns an error, because messaging is not on the critical
// path of money or hardware.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the Bot API for a single bot token.
type Client struct {
	apiURL string
	http   *http.Client
}

// NewClient constructs a Client for the given bot token.
func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		apiURL: "https://api.telegram.org/bot" + token,
		http:   &http.Client{Timeout: timeout},
	}
}

// ReplyKeyboardButton is one button of a custom reply keyboard.
type ReplyKeyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

// ReplyKeyboardMarkup asks the client app to show a custom keyboard.
type ReplyKeyboardMarkup struct {
	Keyboard        [][]ReplyKeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool                    `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool                    `json:"one_time_keyboard,omitempty"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// InlineKeyboardMarkup attaches buttons directly to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// SendMessage delivers a Markdown-formatted message to a chat, optionally
// with a reply markup (keyboard). It returns whether the Bot API accepted
// the message; failures are logged and swallowed.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) bool {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	if replyMarkup != nil {
		payload["reply_markup"] = replyMarkup
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: marshal message")
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: build request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: send message")
		return false
	}
	defer resp.Body.Close()

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: decode response")
		return false
	}
	if !result.OK {
		log.Warn().Int64("chat_id", chatID).Int("status", resp.StatusCode).Msg("telegram: message rejected")
	}
	return result.OK
}

// AuthCodeMessage renders the login-code message.
func AuthCodeMessage(firstName, code string) string {
	return fmt.Sprintf(`🔐 *Код входа в Stiger*

Привет, %s!

Ваш код для входа: `+"`%s`"+`

⏰ Код действителен 5 минут
🔒 Никому не сообщайте этот код

_Если вы не запрашивали код, просто проигнорируйте это сообщение._`, firstName, code)
}

// WelcomeMessage renders the post-login welcome message.
func WelcomeMessage(firstName string) string {
	return fmt.Sprintf(`🎉 *Добро пожаловать в Stiger!*

Привет, %s!

Теперь вы можете:
🔋 Арендовать power bank в любое время
💳 Привязать карту для быстрой оплаты
🗺️ Найти ближайшие станции на карте

_Приятного использования!_ ⚡`, firstName)
}

// ContactRequestMessage renders the /start reply asking for a phone number.
func ContactRequestMessage(firstName string) string {
	return fmt.Sprintf(`🎉 *Добро пожаловать в Stiger!*

Привет, %s!

Для завершения регистрации поделитесь номером телефона 📱

Это нужно для:
🔋 Аренды power bank
💳 Уведомлений об оплате
📞 Связи в экстренных случаях

_Нажмите кнопку ниже для отправки номера_`, firstName)
}

// RegistrationCompleteMessage renders the confirmation after a contact is
// shared.
func RegistrationCompleteMessage(firstName, phone string) string {
	return fmt.Sprintf(`✅ *Регистрация завершена!*

Спасибо, %s!

Ваш номер: %s

Теперь вы можете пользоваться всеми функциями Stiger! ⚡`, firstName, phone)
}

// RentalSuccessMessage renders the rental confirmation notification.
func RentalSuccessMessage(deviceName string, amount int64, address string, at time.Time) string {
	return fmt.Sprintf(`✅ *Аренда успешно оформлена!*

🔋 Power Bank выдан из устройства: *%s*
💰 Сумма: *%d ₽*
⏰ Время: *%s*

📍 Адрес: %s

Приятного использования! 🚀`, deviceName, amount, at.Format("02.01.2006 15:04"), address)
}
