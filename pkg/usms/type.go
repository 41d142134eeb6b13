package usms

import (
	"context"
	"errors"
	"time"
)

// ErrLogin is returned when USMS rejects the credentials or the session expired
// and could not be renewed.
var ErrLogin = errors.New("usms: login failed")

// Account is a logged in USMS account holding one or more meters.
type Account interface {
	Username() string

	// IsUpdateDue reports whether the account data is stale enough to be refreshed.
	IsUpdateDue() bool

	// RefreshData re-reads account and meter data.
	// Returns true if any meter reported a newer reading than before.
	RefreshData(ctx context.Context) (bool, error)

	LastRefresh() time.Time
	NextRefresh() time.Time
	Meters() []Meter
}

// Meter is a single electricity or water meter of an account.
type Meter interface {
	Type() string
	No() string
	Unit() string
	RemainingUnit() float64
	RemainingCredit() float64
	LastUpdate() time.Time

	// HourlyConsumptions returns the hourly consumption for a single past day.
	HourlyConsumptions(ctx context.Context, day time.Time) ([]HourlyConsumption, error)

	// LastNDaysHourlyConsumptions returns hourly consumption for today and the n days before.
	LastNDaysHourlyConsumptions(ctx context.Context, n int) ([]HourlyConsumption, error)

	// AllHourlyConsumptions returns every hourly consumption the provider still has.
	AllHourlyConsumptions(ctx context.Context) ([]HourlyConsumption, error)

	// PreviousNMonthConsumptions returns daily consumption and cost for the month
	// n months before the current one. n=0 is the current month.
	PreviousNMonthConsumptions(ctx context.Context, n int) ([]DailyConsumption, error)
}

// HourlyConsumption is the consumption measured over the hour starting at Start.
type HourlyConsumption struct {
	Start       time.Time `json:"start"`
	Consumption float64   `json:"consumption"`
}

// DailyConsumption is the consumption and its cost for one calendar day.
type DailyConsumption struct {
	Date        time.Time `json:"date"`
	Consumption float64   `json:"consumption"`
	Cost        float64   `json:"cost"`
}

// Wire shapes of the USMS bridge API.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type accountResponse struct {
	Meters []meterResponse `json:"meters"`
}

type meterResponse struct {
	Type            string    `json:"type"`
	No              string    `json:"no"`
	Unit            string    `json:"unit"`
	RemainingUnit   float64   `json:"remaining_unit"`
	RemainingCredit float64   `json:"remaining_credit"`
	LastUpdate      time.Time `json:"last_update"`
}
