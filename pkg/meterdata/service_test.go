package meterdata

import (
	"testing"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
	"github.com/NotCoffee418/usms_meter/pkg/statistics"
	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	m := New(Fields{Type: "Electricity", No: "12345", Unit: "kWh"}, time.Time{}, time.Time{}, aggregator.Totals{}, aggregator.Totals{}, nil)

	assert.Equal(t, "Electricity Meter 12345", m.Name())
	assert.Equal(t, "electricity_meter_12345", m.UniqueID())
	assert.Equal(t, "sensor.electricity_meter_12345", m.StatisticID())
	assert.Equal(t, DefaultCurrency, m.Currency)
	assert.NotNil(t, m.NewStatistics)
}

func TestMetadata(t *testing.T) {
	m := New(Fields{Type: "Water", No: "W-9", Unit: "m³"}, time.Time{}, time.Time{}, aggregator.Totals{}, aggregator.Totals{}, nil)

	assert.Equal(t, statistics.Metadata{
		StatisticID: "sensor.water_meter_w_9",
		Name:        "Water Meter W-9",
		Source:      "recorder",
		Unit:        "m³",
		HasMean:     false,
		HasSum:      true,
	}, m.Metadata())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "electricity_meter_12345_download_and_import_history",
		Slugify("Electricity Meter 12345 Download and Import History"))
	assert.Equal(t, "john_doe", Slugify("John Doe"))
}
