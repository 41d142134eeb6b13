package entities

import (
	"errors"
	"time"
)

const (
	Attribution  = "Data fetched from https://www.usms.com.bn/"
	Manufacturer = "USMS"

	DeviceClassEnergy  = "energy"
	DeviceClassWater   = "water"
	DeviceClassUpdate  = "update"
	DeviceClassRestart = "restart"
)

var ErrUnknownEntity = errors.New("unknown entity")

type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Account      string `json:"account"`
}

// SensorState is what a meter sensor exposes. State is the remaining unit.
type SensorState struct {
	UniqueID    string           `json:"unique_id"`
	Name        string           `json:"name"`
	State       float64          `json:"state"`
	Unit        string           `json:"unit_of_measurement"`
	DeviceClass string           `json:"device_class,omitempty"`
	Attribution string           `json:"attribution"`
	Available   bool             `json:"available"`
	Device      DeviceInfo       `json:"device"`
	Attributes  SensorAttributes `json:"attributes"`
}

type SensorAttributes struct {
	Credit      float64   `json:"credit"`
	Unit        float64   `json:"unit"`
	LastUpdate  time.Time `json:"last_update"`
	LastRefresh time.Time `json:"last_refresh"`
	NextRefresh time.Time `json:"next_refresh"`
	Currency    string    `json:"currency"`

	LastMonthConsumption float64 `json:"last_month_consumption"`
	LastMonthCost        float64 `json:"last_month_cost"`
	ThisMonthConsumption float64 `json:"this_month_consumption"`
	ThisMonthCost        float64 `json:"this_month_cost"`
}

type ButtonAction string

const (
	ActionImportHistory         ButtonAction = "import_history"
	ActionBackfillMissingDays   ButtonAction = "backfill_missing_days"
	ActionRecalculateStatistics ButtonAction = "recalculate_statistics"
)

type ButtonState struct {
	UniqueID    string       `json:"unique_id"`
	Name        string       `json:"name"`
	DeviceClass string       `json:"device_class"`
	Action      ButtonAction `json:"action"`
	MeterNo     string       `json:"meter_no"`
	Device      DeviceInfo   `json:"device"`
}

// PressResult is returned after a button action finished.
type PressResult struct {
	UniqueID     string `json:"unique_id"`
	ImportedRows int    `json:"imported_rows"`
}
