// Inbound webhook handlers.
//
// Three external systems call back into the service:
//   - CloudPayments, with payment lifecycle notifications. Its retry policy
//     keys off the body, not the HTTP status: any response other than
//     {"code":0} (including transport errors) triggers redelivery, so the
//     handler acknowledges everything it can and relies on the idempotent
//     confirmation flow to make redeliveries harmless.
//   - The cabinet platform, with battery-return events.
//   - The Telegram Bot API, with chat updates for the registration flow.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stigerapp/go-rental-backend/internal/gateway/bajie"
	"github.com/stigerapp/go-rental-backend/internal/gateway/cloudpayments"
	"github.com/stigerapp/go-rental-backend/internal/gateway/telegram"
	"github.com/stigerapp/go-rental-backend/internal/http/middleware"
)

// cpAck is the only body CloudPayments treats as "delivered".
var cpAck = gin.H{"code": 0}

// CloudPaymentsWebhook processes payment notifications.
//
// Contract, in evaluation order:
//   - GET/HEAD probes are acknowledged with {"code":0}.
//   - Unparseable bodies are acknowledged: rejecting them would only cause
//     identical redeliveries.
//   - Pre-payment "Check" events are acknowledged WITHOUT signature
//     verification — the gateway sends them before the merchant completes
//     HMAC onboarding, and a rejected check blocks the whole payment.
//   - Every other event must carry a valid Content-HMAC signature
//     (HMAC-SHA256 over the raw body); failures get 401 and no processing.
func (h *Handlers) CloudPaymentsWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		ok(c, http.StatusOK, cpAck)
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		lg.Warn().Err(err).Msg("cloudpayments: body read failed")
		ok(c, http.StatusOK, cpAck)
		return
	}

	ev, err := cloudpayments.ParseEvent(raw, c.ContentType())
	if err != nil {
		lg.Warn().Err(err).Msg("cloudpayments: unparseable webhook body")
		ok(c, http.StatusOK, cpAck)
		return
	}

	if ev.Kind == cloudpayments.KindCheck {
		lg.Info().Str("invoice_id", ev.InvoiceID).Msg("cloudpayments: check allowed")
		ok(c, http.StatusOK, cpAck)
		return
	}

	if !cloudpayments.VerifyHMAC(h.secrets.CloudPayments, raw, c.GetHeader("Content-HMAC")) {
		lg.Warn().Str("status", ev.Status).Msg("cloudpayments: invalid webhook signature")
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid signature")
		return
	}

	ctx := c.Request.Context()
	if ev.SavedCard() {
		if err := h.cardSvc.SaveFromEvent(ctx, ev); err != nil {
			lg.Error().Err(err).Str("account_id", ev.AccountID).Msg("cloudpayments: card save failed")
		}
	}
	h.rentalSvc.HandleEvent(ctx, ev)

	ok(c, http.StatusOK, cpAck)
}

// BajieWebhook processes cabinet-platform callbacks, primarily battery
// returns. Authenticated by a shared secret in the X-Webhook-Secret header
// when one is configured.
func (h *Handlers) BajieWebhook(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	if !bajie.VerifyEventPush(h.secrets.Bajie, c.GetHeader("X-Webhook-Secret")) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}

	var ev bajie.ReturnEvent
	if err := c.ShouldBindJSON(&ev); err != nil || ev.TradeNo == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid event payload")
		return
	}

	res, err := h.rentalSvc.Settle(c.Request.Context(), ev.TradeNo, time.Now().UTC())
	if err != nil {
		// Missing or already-settled orders are acknowledged: the platform
		// redelivers on non-2xx and neither case can succeed later.
		lg.Warn().Err(err).Str("trade_no", ev.TradeNo).Msg("bajie: settlement skipped")
		ok(c, http.StatusOK, gin.H{"ok": true})
		return
	}

	lg.Info().
		Str("order_id", res.OrderID).
		Int64("cost", res.Cost).
		Bool("charged", res.Charged).
		Msg("bajie: battery return settled")
	ok(c, http.StatusOK, gin.H{"ok": true, "orderId": res.OrderID, "cost": res.Cost})
}

// TelegramWebhook processes Bot API updates. Always 200: Telegram retries
// on any other status and a conversational flow has nothing to retry.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	var upd telegram.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&upd); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("telegram: unparseable update")
		ok(c, http.StatusOK, gin.H{"ok": true})
		return
	}
	h.authSvc.HandleUpdate(c.Request.Context(), &upd)
	ok(c, http.StatusOK, gin.H{"ok": true})
}
