package meterdata

import (
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
	"github.com/NotCoffee418/usms_meter/pkg/statistics"
)

const DefaultCurrency = "BND"

// Fields are the values USMS discloses about a meter.
type Fields struct {
	Type            string
	No              string
	Unit            string
	RemainingUnit   float64
	RemainingCredit float64
	LastUpdate      time.Time
}

// MeterData is a point-in-time snapshot of a meter for one refresh cycle.
// A new value is built every cycle; nothing is mutated across cycles.
type MeterData struct {
	Type            string    `json:"type"`
	No              string    `json:"no"`
	Unit            string    `json:"unit"`
	RemainingUnit   float64   `json:"remaining_unit"`
	RemainingCredit float64   `json:"remaining_credit"`
	LastUpdate      time.Time `json:"last_update"`

	LastRefresh time.Time `json:"last_refresh"`
	NextRefresh time.Time `json:"next_refresh"`

	LastMonth aggregator.Totals `json:"last_month"`
	ThisMonth aggregator.Totals `json:"this_month"`

	// NewStatistics are the rows this cycle found new or changed.
	NewStatistics []statistics.Record `json:"-"`

	Currency string `json:"currency"`
}
