package bajie

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "merchant", "pass", 5*time.Second)
}

func writeEnvelope(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestQueryDeviceOnline(t *testing.T) {
	var gotAuth, gotQuery string
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rent/cabinet/query" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("deviceId")
		writeEnvelope(w, `{"code":0,"msg":"ok","data":{
			"cabinet":{"id":"DTN00872","slots":8,"emptySlots":3,"busySlots":5,"online":true,"qrCode":"https://q.example/DTN00872"},
			"shop":{"id":"shop-1","name":"Авиапарк","address":"Ходынский б-р, 4"}
		}}`)
	})

	d, err := cl.QueryDevice(context.Background(), "DTN00872")
	if err != nil {
		t.Fatalf("QueryDevice: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("merchant:pass"))
	if gotAuth != want {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotQuery != "DTN00872" {
		t.Fatalf("deviceId = %q", gotQuery)
	}
	if d.CabinetID != "DTN00872" || d.TotalSlots != 8 || d.EmptySlots != 3 || d.BusySlots != 5 {
		t.Fatalf("device: %+v", d)
	}
	if !d.Online || d.Address != "Ходынский б-р, 4" || d.ShopName != "Авиапарк" {
		t.Fatalf("device: %+v", d)
	}
	if d.ShopID != "shop-1" {
		t.Fatalf("ShopID = %q, want shop id fallback", d.ShopID)
	}
}

func TestQueryDeviceOffline(t *testing.T) {
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `{"code":0,"data":{"cabinet":{"id":"DTN00915","online":false}}}`)
	})
	_, err := cl.QueryDevice(context.Background(), "DTN00915")
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestQueryDeviceUnknownCabinet(t *testing.T) {
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `{"code":1001,"msg":"cabinet not exists"}`)
	})
	_, err := cl.QueryDevice(context.Background(), "GHOST")
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if !strings.Contains(err.Error(), "cabinet not exists") {
		t.Fatalf("vendor message lost: %v", err)
	}
}

func TestCreateRentOrder(t *testing.T) {
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rent/order/create" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("deviceId") != "DTN00872" {
			t.Errorf("deviceId = %q", q.Get("deviceId"))
		}
		if q.Get("callbackURL") != "https://app.example/webhooks/bajie" {
			t.Errorf("callbackURL = %q", q.Get("callbackURL"))
		}
		writeEnvelope(w, `{"code":0,"data":{"tradeNo":"RENT20260828001"}}`)
	})

	tradeNo, err := cl.CreateRentOrder(context.Background(), "DTN00872", "https://app.example/webhooks/bajie")
	if err != nil {
		t.Fatalf("CreateRentOrder: %v", err)
	}
	if tradeNo != "RENT20260828001" {
		t.Fatalf("tradeNo = %q", tradeNo)
	}
}

func TestCreateRentOrderMissingTradeNo(t *testing.T) {
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `{"code":0,"data":{}}`)
	})
	if _, err := cl.CreateRentOrder(context.Background(), "DTN00872", "https://x"); err == nil {
		t.Fatal("want error for empty tradeNo")
	}
}

func TestCreateRentOrderVendorError(t *testing.T) {
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `{"code":500,"msg":"no battery available"}`)
	})
	_, err := cl.CreateRentOrder(context.Background(), "DTN00872", "https://x")
	if err == nil || !strings.Contains(err.Error(), "no battery available") {
		t.Fatalf("err = %v", err)
	}
}

func TestEjectBatteryDefaultsSlot(t *testing.T) {
	var gotSlot string
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cabinet/ejectByRent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotSlot = r.URL.Query().Get("slotNum")
		writeEnvelope(w, `{"code":0}`)
	})
	if err := cl.EjectBattery(context.Background(), "DTN00872", "RENT1", 0); err != nil {
		t.Fatalf("EjectBattery: %v", err)
	}
	if gotSlot != "1" {
		t.Fatalf("slotNum = %q, want default 1", gotSlot)
	}
}

func TestEjectBatteryJamSurfacesError(t *testing.T) {
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `{"code":203,"msg":"slot motor jam"}`)
	})
	err := cl.EjectBattery(context.Background(), "DTN00872", "RENT1", 3)
	if err == nil || !strings.Contains(err.Error(), "slot motor jam") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteOrder(t *testing.T) {
	var gotOrder string
	cl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rent/order/complete" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotOrder = r.URL.Query().Get("orderId")
		writeEnvelope(w, `{"code":0}`)
	})
	if err := cl.CompleteOrder(context.Background(), "RENT1"); err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if gotOrder != "RENT1" {
		t.Fatalf("orderId = %q", gotOrder)
	}
}

func TestVerifyEventPush(t *testing.T) {
	cases := []struct {
		name     string
		secret   string
		provided string
		want     bool
	}{
		{"match", "s3cret", "s3cret", true},
		{"mismatch", "s3cret", "wrong", false},
		{"missing header", "s3cret", "", false},
		{"unset secret allows all", "", "anything", true},
		{"unset secret empty header", "", "", true},
	}
	for _, tc := range cases {
		if got := VerifyEventPush(tc.secret, tc.provided); got != tc.want {
			t.Errorf("%s: VerifyEventPush = %v, want %v", tc.name, got, tc.want)
		}
	}
}
