// Package services – tariff catalog and settlement pricing.
package services

import "time"

// Tariff describes one rental plan. Price and Deposit are minor currency
// units; IncludedHours is the prepaid rental window; ExtraHourPrice is the
// surcharge per started hour beyond it.
type Tariff struct {
	ID             string `json:"id"`
	Price          int64  `json:"price"`
	Deposit        int64  `json:"deposit"`
	IncludedHours  int    `json:"included_hours"`
	ExtraHourPrice int64  `json:"extra_hour_price"`
	Description    string `json:"description"`
}

// Total is the amount authorized up front: tariff price plus deposit.
func (t Tariff) Total() int64 { return t.Price + t.Deposit }

// tariffCatalog is the fixed plan list. Order matters for display.
var tariffCatalog = []Tariff{
	{ID: "1hour", Price: 200, Deposit: 200, IncludedHours: 1, ExtraHourPrice: 100, Description: "1 час аренды"},
	{ID: "4hours", Price: 400, Deposit: 200, IncludedHours: 4, ExtraHourPrice: 100, Description: "4 часа аренды"},
	{ID: "daily", Price: 1000, Deposit: 200, IncludedHours: 24, ExtraHourPrice: 100, Description: "24 часа аренды"},
}

// Tariffs returns the catalog for display.
func Tariffs() []Tariff {
	out := make([]Tariff, len(tariffCatalog))
	copy(out, tariffCatalog)
	return out
}

// TariffByID resolves a tariff, falling back to the first (cheapest) plan
// for unknown ids — matching how order creation treats an absent tariff
// selection.
func TariffByID(id string) Tariff {
	for _, t := range tariffCatalog {
		if t.ID == id {
			return t
		}
	}
	return tariffCatalog[0]
}

// SettlementCost computes the final rental cost for an elapsed duration:
// the flat tariff price within the included window, plus the per-hour
// surcharge for every started hour beyond it. Elapsed exactly equal to the
// included hours is still the flat price (boundary is inclusive).
func SettlementCost(t Tariff, elapsed time.Duration) int64 {
	included := time.Duration(t.IncludedHours) * time.Hour
	if elapsed <= included {
		return t.Price
	}
	extra := elapsed - included
	extraHours := int64(extra / time.Hour)
	if extra%time.Hour != 0 {
		extraHours++
	}
	return t.Price + extraHours*t.ExtraHourPrice
}
