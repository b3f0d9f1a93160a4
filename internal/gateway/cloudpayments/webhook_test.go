package cloudpayments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"TransactionId":123}`)

	if !VerifyHMAC("secret", body, sign("secret", body)) {
		t.Fatalf("valid signature rejected")
	}
	if VerifyHMAC("secret", body, sign("other", body)) {
		t.Fatalf("signature with wrong secret accepted")
	}
	if VerifyHMAC("secret", body, "") {
		t.Fatalf("empty signature accepted")
	}
	if VerifyHMAC("secret", []byte(`{"TransactionId":124}`), sign("secret", body)) {
		t.Fatalf("signature over different bytes accepted")
	}
}

func TestParseEvent_JSONStatusEvent(t *testing.T) {
	body := []byte(`{
		"TransactionId": 891510444,
		"InvoiceId": "order-1",
		"AccountId": "telegram_42",
		"Amount": 400.00,
		"Status": "Authorized",
		"Token": "tk_abc",
		"CardLastFour": "4242",
		"Data": {"deviceId":"DTN00872","shopId":"shop-1","slotNum":3,"tariffId":"1hour"}
	}`)

	ev, err := ParseEvent(body, "application/json")
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != KindAuthorized {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.TransactionID != "891510444" || ev.InvoiceID != "order-1" || ev.Amount != 400 {
		t.Fatalf("fields: %+v", ev)
	}
	if !ev.SavedCard() || ev.CardLastFour != "4242" {
		t.Fatalf("card fields: %+v", ev)
	}
	if ev.Data.DeviceID != "DTN00872" || ev.Data.SlotNum != 3 {
		t.Fatalf("order data: %+v", ev.Data)
	}
}

func TestParseEvent_QuotedNumbersAndStringData(t *testing.T) {
	// The gateway quotes ids and amounts inconsistently, and sometimes
	// delivers Data as a JSON string.
	body := []byte(`{
		"TransactionId": "891510444",
		"InvoiceId": "order-1",
		"Amount": "400",
		"Status": "Completed",
		"Data": "{\"deviceId\":\"DTN00872\",\"slotNum\":1}"
	}`)

	ev, err := ParseEvent(body, "application/json")
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != KindCompleted || ev.TransactionID != "891510444" || ev.Amount != 400 {
		t.Fatalf("fields: %+v", ev)
	}
	if ev.Data.DeviceID != "DTN00872" {
		t.Fatalf("string-wrapped data not decoded: %+v", ev.Data)
	}
}

func TestParseEvent_FormURLEncoded(t *testing.T) {
	body := []byte(`TransactionId=891510444&InvoiceId=order-1&Amount=400.00&Status=Authorized&AccountId=u1`)

	ev, err := ParseEvent(body, "application/x-www-form-urlencoded")
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Kind != KindAuthorized || ev.TransactionID != "891510444" || ev.AccountID != "u1" {
		t.Fatalf("fields: %+v", ev)
	}
}

func TestParseEvent_SniffsContentType(t *testing.T) {
	jsonBody := []byte(`{"Status":"Authorized","TransactionId":1,"InvoiceId":"o1"}`)
	if ev, err := ParseEvent(jsonBody, ""); err != nil || ev.Kind != KindAuthorized {
		t.Fatalf("json sniff: %+v err=%v", ev, err)
	}
	formBody := []byte(`Status=Authorized&TransactionId=1&InvoiceId=o1`)
	if ev, err := ParseEvent(formBody, ""); err != nil || ev.Kind != KindAuthorized {
		t.Fatalf("form sniff: %+v err=%v", ev, err)
	}
}

func TestClassify_CheckHeuristic(t *testing.T) {
	cases := []struct {
		name string
		body string
		want EventKind
	}{
		{"explicit check status", `{"Status":"Check","TransactionId":1,"InvoiceId":"o1"}`, KindCheck},
		{"invoice without transaction", `{"InvoiceId":"o1","Amount":400}`, KindCheck},
		{"authorized", `{"Status":"Authorized","TransactionId":1,"InvoiceId":"o1"}`, KindAuthorized},
		{"declined", `{"Status":"Declined","TransactionId":1,"InvoiceId":"o1"}`, KindDeclined},
		{"unknown status", `{"Status":"Mystery","TransactionId":1}`, KindUnknown},
		{"empty body", ``, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tc.body), "application/json")
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if ev.Kind != tc.want {
				t.Fatalf("kind = %q, want %q", ev.Kind, tc.want)
			}
		})
	}
}
