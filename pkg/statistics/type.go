// Package statistics reconciles fetched hourly consumption against a recorded
// long-term statistic and works out which rows have to be written back.
package statistics

import "time"

// Brunei is the civil timezone of USMS readings. Brunei has no daylight saving.
var Brunei = time.FixedZone("BNT", 8*60*60)

// HoursPerDay is the number of hourly rows a complete day has.
const HoursPerDay = 24

// Sample is the consumption measured over the hour starting at Start.
type Sample struct {
	Start time.Time
	Value float64
}

// Row is one hour of a canonical table. Sum is only meaningful when HasSum is set.
type Row struct {
	Start  time.Time `json:"start"`
	State  float64   `json:"state"`
	Sum    float64   `json:"sum"`
	HasSum bool      `json:"-"`
}

// Record is one hourly row of a persisted statistic.
type Record struct {
	Start time.Time `json:"start"`
	State float64   `json:"state"`
	Sum   float64   `json:"sum"`
}

// Metadata describes a statistic when importing records into it.
type Metadata struct {
	StatisticID string `json:"statistic_id"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Unit        string `json:"unit_of_measurement"`
	HasMean     bool   `json:"has_mean"`
	HasSum      bool   `json:"has_sum"`
}
