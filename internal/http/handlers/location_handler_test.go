package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/gateway/bajie"
)

type fakeHardware struct {
	device   *bajie.Device
	queryErr error
	queried  []string
}

func (f *fakeHardware) QueryDevice(ctx context.Context, deviceID string) (*bajie.Device, error) {
	f.queried = append(f.queried, deviceID)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.device, nil
}

func (f *fakeHardware) CreateRentOrder(ctx context.Context, deviceID, callbackURL string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeHardware) EjectBattery(ctx context.Context, cabinetID, rentOrderID string, slotNum int) error {
	return errors.New("not implemented")
}

func (f *fakeHardware) CompleteOrder(ctx context.Context, rentOrderID string) error {
	return errors.New("not implemented")
}

func newLocationRouter(t *testing.T, locSvc fakeLocSvc, hw *fakeHardware) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := New(&fakeRentalSvc{}, &fakeCardSvc{}, &fakeAuthSvc{}, locSvc, hw, WebhookSecrets{})
	r := gin.New()
	r.GET("/locations", h.ListLocations)
	r.GET("/devices", h.GetDevice)
	return r
}

func TestListLocations(t *testing.T) {
	locs := []domain.Location{
		{DeviceID: "DTN00872", Name: "Авиапарк", Address: "Ходынский б-р, 4", Available: 3, Total: 8, Online: true},
		{DeviceID: "DTN00911", Name: "Метрополис", Available: 0, Total: 8, Online: false},
	}
	r := newLocationRouter(t, fakeLocSvc{locations: locs}, &fakeHardware{})

	w := jsonRequest(t, r, http.MethodGet, "/locations", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Locations []domain.Location `json:"locations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Locations) != 2 || body.Locations[0].DeviceID != "DTN00872" {
		t.Fatalf("locations: %+v", body.Locations)
	}

	r = newLocationRouter(t, fakeLocSvc{err: errors.New("db down")}, &fakeHardware{})
	w = jsonRequest(t, r, http.MethodGet, "/locations", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Code != ErrCodeListFailed {
		t.Fatalf("code = %q", er.Code)
	}
}

func TestGetDevice_QueryParamAliases(t *testing.T) {
	hw := &fakeHardware{device: &bajie.Device{CabinetID: "DTN00872", Online: true, EmptySlots: 2}}
	r := newLocationRouter(t, fakeLocSvc{}, hw)

	w := jsonRequest(t, r, http.MethodGet, "/devices?deviceId=DTN00872", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("deviceId: status = %d", w.Code)
	}
	var body struct {
		Device *bajie.Device `json:"device"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Device == nil || body.Device.CabinetID != "DTN00872" {
		t.Fatalf("device: %+v", body.Device)
	}

	// Older storefront builds send cabinetId.
	if w := jsonRequest(t, r, http.MethodGet, "/devices?cabinetId=DTN00911", "", nil); w.Code != http.StatusOK {
		t.Fatalf("cabinetId: status = %d", w.Code)
	}
	if len(hw.queried) != 2 || hw.queried[1] != "DTN00911" {
		t.Fatalf("queried: %v", hw.queried)
	}

	if w := jsonRequest(t, r, http.MethodGet, "/devices", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("no id: status = %d, want 400", w.Code)
	}
}

func TestGetDevice_ErrorMapping(t *testing.T) {
	r := newLocationRouter(t, fakeLocSvc{}, &fakeHardware{queryErr: bajie.ErrDeviceUnavailable})
	w := jsonRequest(t, r, http.MethodGet, "/devices?deviceId=DTN00872", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("offline: status = %d, want 404", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Code != ErrCodeDeviceUnavailable {
		t.Fatalf("code = %q", er.Code)
	}

	r = newLocationRouter(t, fakeLocSvc{}, &fakeHardware{queryErr: errors.New("timeout")})
	if w := jsonRequest(t, r, http.MethodGet, "/devices?deviceId=DTN00872", "", nil); w.Code != http.StatusBadGateway {
		t.Fatalf("vendor failure: status = %d, want 502", w.Code)
	}
}
