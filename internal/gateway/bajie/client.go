// Package bajie wraps the cabinet/IoT platform ("Bajie") REST API. All
// endpoints answer a {code, msg, data} envelope where code 0 means success;
// everything else is surfaced with the vendor message attached.
package bajie

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the vendor's public open-API endpoint.
const DefaultBaseURL = "https://developer.chargenow.top/cdb-open-api/v1"

// ErrDeviceUnavailable is returned when the platform reports a cabinet
// offline or unknown. Callers refuse to take payment for such a device.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Client talks to the cabinet platform using HTTP basic auth.
type Client struct {
	baseURL    string
	authHeader string
	http       *http.Client
}

// NewClient constructs a Client. An empty baseURL falls back to the vendor
// default; timeout bounds every call end to end.
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password)),
		http:       &http.Client{Timeout: timeout},
	}
}

// Device is the normalized cabinet state from the device query endpoint.
type Device struct {
	CabinetID  string
	ShopID     string
	ShopName   string
	Address    string
	TotalSlots int
	EmptySlots int
	BusySlots  int
	Online     bool
	QRCode     string
}

// envelope is the vendor's common response shape.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// call performs an authenticated request and decodes the envelope. A
// non-zero vendor code is returned as an error carrying the vendor message.
func (c *Client) call(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("bajie: build %s: %w", path, err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bajie: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bajie: read %s: %w", path, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("bajie: decode %s: %w", path, err)
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("bajie: %s: code %d: %s", path, env.Code, env.Msg)
	}
	return env.Data, nil
}

// QueryDevice fetches cabinet state by device/cabinet id. An offline or
// unknown cabinet yields ErrDeviceUnavailable.
func (c *Client) QueryDevice(ctx context.Context, deviceID string) (*Device, error) {
	q := url.Values{"deviceId": {deviceID}}
	data, err := c.call(ctx, http.MethodGet, "/rent/cabinet/query", q)
	if err != nil {
		// The platform reports unknown cabinets as a non-zero code.
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}

	var body struct {
		Cabinet struct {
			ID         string `json:"id"`
			ShopID     string `json:"shopId"`
			Slots      int    `json:"slots"`
			EmptySlots int    `json:"emptySlots"`
			BusySlots  int    `json:"busySlots"`
			Online     bool   `json:"online"`
			QRCode     string `json:"qrCode"`
		} `json:"cabinet"`
		Shop struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("bajie: decode cabinet: %w", err)
	}
	if !body.Cabinet.Online {
		return nil, ErrDeviceUnavailable
	}

	d := &Device{
		CabinetID:  body.Cabinet.ID,
		ShopID:     body.Cabinet.ShopID,
		ShopName:   body.Shop.Name,
		Address:    body.Shop.Address,
		TotalSlots: body.Cabinet.Slots,
		EmptySlots: body.Cabinet.EmptySlots,
		BusySlots:  body.Cabinet.BusySlots,
		Online:     body.Cabinet.Online,
		QRCode:     body.Cabinet.QRCode,
	}
	if d.ShopID == "" {
		d.ShopID = body.Shop.ID
	}
	return d, nil
}

// CreateRentOrder registers intent to dispense from a cabinet. The platform
// will call back on callbackURL with battery-return events. Returns the
// platform's order id (tradeNo).
func (c *Client) CreateRentOrder(ctx context.Context, deviceID, callbackURL string) (string, error) {
	q := url.Values{
		"deviceId":    {deviceID},
		"callbackURL": {callbackURL},
	}
	data, err := c.call(ctx, http.MethodPost, "/rent/order/create", q)
	if err != nil {
		return "", err
	}
	var body struct {
		TradeNo string `json:"tradeNo"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("bajie: decode rent order: %w", err)
	}
	if body.TradeNo == "" {
		return "", errors.New("bajie: rent order created without tradeNo")
	}
	return body.TradeNo, nil
}

// EjectBattery commands a physical slot to open. This can fail
// independently of order creation (hardware jam, slot already empty);
// callers must treat failure as ambiguous once money has moved.
func (c *Client) EjectBattery(ctx context.Context, cabinetID, rentOrderID string, slotNum int) error {
	if slotNum <= 0 {
		slotNum = 1
	}
	q := url.Values{
		"cabinetid":   {cabinetID},
		"rentOrderId": {rentOrderID},
		"slotNum":     {strconv.Itoa(slotNum)},
	}
	_, err := c.call(ctx, http.MethodPost, "/cabinet/ejectByRent", q)
	return err
}

// CompleteOrder marks a rent order finished on the platform side after
// settlement.
func (c *Client) CompleteOrder(ctx context.Context, rentOrderID string) error {
	q := url.Values{"orderId": {rentOrderID}}
	_, err := c.call(ctx, http.MethodPost, "/rent/order/complete", q)
	return err
}

// VerifyEventPush checks the shared-secret signature on inbound event
// pushes from the platform. An unset secret disables the check (dev/stub
// deployments).
func VerifyEventPush(secret, provided string) bool {
	if secret == "" {
		return true
	}
	return provided != "" && provided == secret
}

// ReturnEvent is the battery-return callback payload the platform POSTs to
// the callback URL registered at rent-order creation.
type ReturnEvent struct {
	TradeNo   string `json:"tradeNo"`
	CabinetID string `json:"cabinetId"`
	SlotNum   int    `json:"slotNum"`
	Event     string `json:"event"`
}
