// Webhook verification and classification for inbound CloudPayments
// callbacks.
//
// The gateway signs status notifications with HMAC-SHA256 over the exact
// raw request bytes (Content-HMAC header, base64). The one exception is the
// pre-authorization "check" callback, which the vendor sends unsigned by
// design: rejecting it blocks a legitimate customer payment, so check
// detection is deliberately liberal and check requests are always allowed.
package cloudpayments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// EventKind tags a classified webhook payload. The set is closed so the
// orchestrator's dispatch switch stays exhaustive.
type EventKind string

const (
	KindCheck      EventKind = "Check"
	KindAuthorized EventKind = "Authorized"
	KindCompleted  EventKind = "Completed"
	KindCancelled  EventKind = "Cancelled"
	KindDeclined   EventKind = "Declined"
	KindRefunded   EventKind = "Refunded"
	KindUnknown    EventKind = "Unknown"
)

// OrderData is the JSON payload the payment widget echoes back through the
// gateway (the "Data" field): enough to route the webhook to a cabinet.
// The vendor delivers it either as a nested object or as a JSON string.
type OrderData struct {
	DeviceID string `json:"deviceId"`
	ShopID   string `json:"shopId"`
	SlotNum  int    `json:"slotNum"`
	TariffID string `json:"tariffId"`
}

// Event is a classified webhook payload.
type Event struct {
	Kind          EventKind
	Status        string
	InvoiceID     string
	TransactionID string
	AccountID     string
	Amount        int64
	Data          OrderData

	// Card-binding fields, present on authorization events that saved a card.
	Token        string
	CardFirstSix string
	CardLastFour string
	CardType     string
	CardExpDate  string
	Issuer       string
}

// SavedCard reports whether the event carries a bindable card token.
func (e *Event) SavedCard() bool { return e.Token != "" }

// VerifyHMAC computes HMAC-SHA256 over the raw body with the shared secret
// and compares it (constant-time) with the base64 signature from the
// Content-HMAC header.
func VerifyHMAC(secret string, raw []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

// flexString decodes a JSON number, string, or null into a string. The
// gateway is inconsistent about quoting ids and amounts, and the
// form-urlencoded variant delivers everything as text anyway.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

// rawEvent is the open wire shape before classification.
type rawEvent struct {
	Status        string          `json:"Status"`
	InvoiceID     flexString      `json:"InvoiceId"`
	TransactionID flexString      `json:"TransactionId"`
	AccountID     string          `json:"AccountId"`
	Amount        flexString      `json:"Amount"`
	Data          json.RawMessage `json:"Data"`
	Token         string          `json:"Token"`
	CardFirstSix  string          `json:"CardFirstSix"`
	CardLastFour  string          `json:"CardLastFour"`
	CardType      string          `json:"CardType"`
	CardExpDate   string          `json:"CardExpDate"`
	Issuer        string          `json:"Issuer"`
}

// ParseEvent decodes an inbound webhook body (JSON or form-urlencoded,
// sniffed when the content type is missing) and classifies it. It only
// errors when the body is unusable for a status event; the caller still
// answers such requests with the vendor's allow code to avoid blocking
// check callbacks.
func ParseEvent(raw []byte, contentType string) (*Event, error) {
	var re rawEvent
	var err error
	switch {
	case strings.Contains(contentType, "application/json"):
		err = json.Unmarshal(emptyToObject(raw), &re)
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		err = parseForm(raw, &re)
	default:
		if err = json.Unmarshal(emptyToObject(raw), &re); err != nil {
			err = parseForm(raw, &re)
		}
	}
	if err != nil {
		return nil, err
	}

	e := &Event{
		Status:        re.Status,
		InvoiceID:     string(re.InvoiceID),
		TransactionID: string(re.TransactionID),
		AccountID:     re.AccountID,
		Token:         re.Token,
		CardFirstSix:  re.CardFirstSix,
		CardLastFour:  re.CardLastFour,
		CardType:      re.CardType,
		CardExpDate:   re.CardExpDate,
		Issuer:        re.Issuer,
	}
	if f, err := strconv.ParseFloat(string(re.Amount), 64); err == nil {
		e.Amount = int64(f + 0.5)
	}
	e.Data = decodeOrderData(re.Data)
	e.Kind = classify(e)
	return e, nil
}

// classify applies the check heuristic first, then discriminates on Status.
// Check requests often arrive without a transaction id and always carry an
// invoice id.
func classify(e *Event) EventKind {
	if e.Status == string(KindCheck) || (e.TransactionID == "" && e.InvoiceID != "") {
		return KindCheck
	}
	switch EventKind(e.Status) {
	case KindAuthorized, KindCompleted, KindCancelled, KindDeclined, KindRefunded:
		return EventKind(e.Status)
	}
	return KindUnknown
}

// decodeOrderData accepts the Data field as an object, a JSON string of an
// object, or garbage (ignored).
func decodeOrderData(raw json.RawMessage) OrderData {
	var d OrderData
	if len(raw) == 0 {
		return d
	}
	if json.Unmarshal(raw, &d) == nil && (d.DeviceID != "" || d.ShopID != "" || d.SlotNum != 0) {
		return d
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		_ = json.Unmarshal([]byte(s), &d)
	}
	return d
}

// parseForm maps form-urlencoded fields onto the rawEvent shape.
func parseForm(raw []byte, re *rawEvent) error {
	vals, err := url.ParseQuery(string(raw))
	if err != nil {
		return err
	}
	re.Status = vals.Get("Status")
	re.InvoiceID = flexString(vals.Get("InvoiceId"))
	re.TransactionID = flexString(vals.Get("TransactionId"))
	re.AccountID = vals.Get("AccountId")
	re.Amount = flexString(vals.Get("Amount"))
	if v := vals.Get("Data"); v != "" {
		re.Data = json.RawMessage(strconv.Quote(v))
	}
	re.Token = vals.Get("Token")
	re.CardFirstSix = vals.Get("CardFirstSix")
	re.CardLastFour = vals.Get("CardLastFour")
	re.CardType = vals.Get("CardType")
	re.CardExpDate = vals.Get("CardExpDate")
	re.Issuer = vals.Get("Issuer")
	return nil
}

func emptyToObject(raw []byte) []byte {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []byte("{}")
	}
	return raw
}
