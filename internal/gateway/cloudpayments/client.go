// Package cloudpayments wraps the CloudPayments REST API behind typed
// results. The service only ever performs server-side money movement here:
// capturing a previously authorized hold, releasing it, charging a saved
// card token, and managing the card list. Card entry and the initial
// authorization happen in the vendor's client-side widget and reach the
// backend as webhooks (see webhook.go).
//
// Every operation normalizes the vendor response into a Result: transport
// and decoding problems surface as Go errors, vendor-level declines surface
// as Result.OK == false with the vendor message attached.
package cloudpayments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIURL is the production CloudPayments REST endpoint.
const DefaultAPIURL = "https://api.cloudpayments.ru"

// Client is a CloudPayments API client authenticated with the merchant's
// public id / API secret pair (HTTP basic auth).
type Client struct {
	apiURL   string
	publicID string
	secret   string
	http     *http.Client
}

// NewClient constructs a Client. An empty apiURL falls back to the
// production endpoint; timeout bounds every call end to end.
func NewClient(apiURL, publicID, secret string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		publicID: publicID,
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
	}
}

// Result is the normalized outcome of a gateway call. OK reflects both the
// HTTP status and the vendor's Success flag; Message carries the vendor's
// human-readable reason when OK is false.
type Result struct {
	OK      bool
	Status  int
	Message string
	Model   json.RawMessage
}

// Card is one entry of the vendor's saved-card list ("Model" array).
type Card struct {
	Token        string `json:"Token"`
	AccountID    string `json:"AccountId"`
	CardFirstSix string `json:"CardFirstSix"`
	CardLastFour string `json:"CardLastFour"`
	CardType     string `json:"CardType"`
	CardExpDate  string `json:"CardExpDate"`
	Issuer       string `json:"Issuer"`
}

// envelope is the common vendor response shape.
type envelope struct {
	Success bool            `json:"Success"`
	Message string          `json:"Message"`
	Model   json.RawMessage `json:"Model"`
}

// post performs an authenticated JSON POST and decodes the vendor envelope.
func (c *Client) post(ctx context.Context, path string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cloudpayments: marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cloudpayments: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basicToken(c.publicID, c.secret))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudpayments: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cloudpayments: read %s: %w", path, err)
	}

	res := &Result{Status: resp.StatusCode}
	var env envelope
	if len(raw) > 0 {
		// Some error paths return plain text; keep the body as the message.
		if err := json.Unmarshal(raw, &env); err != nil {
			res.Message = strings.TrimSpace(string(raw))
			return res, nil
		}
	}
	res.OK = resp.StatusCode < 300 && env.Success
	res.Message = env.Message
	res.Model = env.Model
	return res, nil
}

// Confirm captures a previously authorized (held) payment. Capturing a
// transaction that is already confirmed is reported by the vendor as a
// decline; the caller's retry logic needs that to read as success, so it is
// normalized here.
func (c *Client) Confirm(ctx context.Context, transactionID string, amount int64) (*Result, error) {
	payload := map[string]any{"TransactionId": transactionID}
	if amount > 0 {
		payload["Amount"] = amount
	}
	res, err := c.post(ctx, "/payments/confirm", payload)
	if err != nil {
		return nil, err
	}
	if !res.OK && alreadyDone(res.Message) {
		res.OK = true
	}
	return res, nil
}

// Void releases an authorization hold without charging it. Used as
// compensation when hardware fails after payment; the caller logs failures
// and moves on, so Void never wraps a vendor decline into an error.
func (c *Client) Void(ctx context.Context, transactionID string) (*Result, error) {
	res, err := c.post(ctx, "/payments/void", map[string]any{"TransactionId": transactionID})
	if err != nil {
		return nil, err
	}
	if !res.OK && alreadyDone(res.Message) {
		res.OK = true
	}
	return res, nil
}

// ChargeByToken performs an off-session charge against a saved card token,
// used for post-rental tariff settlement.
func (c *Client) ChargeByToken(ctx context.Context, token, accountID string, amount int64, currency, invoiceID, description string) (*Result, error) {
	return c.post(ctx, "/payments/tokens/charge", map[string]any{
		"Token":       token,
		"AccountId":   accountID,
		"Amount":      amount,
		"Currency":    currency,
		"InvoiceId":   invoiceID,
		"Description": description,
	})
}

// ListCards returns the saved cards bound under accountID. The vendor
// overloads its not-found signal: an account that simply has no cards comes
// back as HTTP 404 or a "not found" message, which is the empty-list case
// here, not an error.
func (c *Client) ListCards(ctx context.Context, accountID string) ([]Card, *Result, error) {
	res, err := c.post(ctx, "/payments/cards/list", map[string]any{"AccountId": accountID})
	if err != nil {
		return nil, nil, err
	}
	if !res.OK {
		if res.Status == http.StatusNotFound || strings.Contains(strings.ToLower(res.Message), "not found") {
			res.OK = true
			return []Card{}, res, nil
		}
		return nil, res, nil
	}
	var cards []Card
	if len(res.Model) > 0 {
		if err := json.Unmarshal(res.Model, &cards); err != nil {
			return nil, res, fmt.Errorf("cloudpayments: decode card list: %w", err)
		}
	}
	return cards, res, nil
}

// UnbindCard removes a saved card token from the account.
func (c *Client) UnbindCard(ctx context.Context, accountID, token string) (*Result, error) {
	return c.post(ctx, "/payments/tokens/remove", map[string]any{
		"AccountId": accountID,
		"Token":     token,
	})
}

// alreadyDone matches vendor messages that mean the requested state change
// has happened before (double confirm, double void).
func alreadyDone(msg string) bool {
	low := strings.ToLower(msg)
	return strings.Contains(low, "already") || strings.Contains(low, "уже")
}

func basicToken(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
