package services

import (
	"testing"
	"time"
)

func TestTariffByID_KnownAndFallback(t *testing.T) {
	if got := TariffByID("daily"); got.ID != "daily" || got.Price != 1000 {
		t.Fatalf("daily tariff: %+v", got)
	}
	// Unknown ids fall back to the first plan rather than failing checkout.
	if got := TariffByID("platinum"); got.ID != "1hour" {
		t.Fatalf("fallback tariff: %+v", got)
	}
	if got := TariffByID(""); got.ID != "1hour" {
		t.Fatalf("empty tariff id: %+v", got)
	}
}

func TestTariffTotal_IncludesDeposit(t *testing.T) {
	if got := TariffByID("1hour").Total(); got != 400 {
		t.Fatalf("1hour total = %d, want 400", got)
	}
	if got := TariffByID("daily").Total(); got != 1200 {
		t.Fatalf("daily total = %d, want 1200", got)
	}
}

func TestSettlementCost(t *testing.T) {
	oneHour := TariffByID("1hour")

	cases := []struct {
		name    string
		tariff  Tariff
		elapsed time.Duration
		want    int64
	}{
		{"within window", oneHour, 30 * time.Minute, 200},
		{"exact boundary is included", oneHour, time.Hour, 200},
		{"one started extra hour", oneHour, 90 * time.Minute, 300},
		{"exact extra hour", oneHour, 2 * time.Hour, 300},
		{"second started extra hour", oneHour, 2*time.Hour + time.Minute, 400},
		{"daily within window", TariffByID("daily"), 23 * time.Hour, 1000},
		{"daily overtime", TariffByID("daily"), 25 * time.Hour, 1100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SettlementCost(tc.tariff, tc.elapsed); got != tc.want {
				t.Fatalf("SettlementCost(%v) = %d, want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}
