package meterdata

import (
	"strings"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
	"github.com/NotCoffee418/usms_meter/pkg/statistics"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
	"github.com/gosimple/slug"
)

// New builds the snapshot of a meter for one refresh cycle.
func New(
	fields Fields,
	lastRefresh, nextRefresh time.Time,
	lastMonth, thisMonth aggregator.Totals,
	newStatistics []statistics.Record,
) MeterData {
	if newStatistics == nil {
		newStatistics = []statistics.Record{}
	}
	return MeterData{
		Type:            fields.Type,
		No:              fields.No,
		Unit:            fields.Unit,
		RemainingUnit:   fields.RemainingUnit,
		RemainingCredit: fields.RemainingCredit,
		LastUpdate:      fields.LastUpdate,
		LastRefresh:     lastRefresh,
		NextRefresh:     nextRefresh,
		LastMonth:       lastMonth,
		ThisMonth:       thisMonth,
		NewStatistics:   newStatistics,
		Currency:        DefaultCurrency,
	}
}

// FieldsOf reads the disclosed fields of an upstream meter.
func FieldsOf(meter usms.Meter) Fields {
	return Fields{
		Type:            meter.Type(),
		No:              meter.No(),
		Unit:            meter.Unit(),
		RemainingUnit:   meter.RemainingUnit(),
		RemainingCredit: meter.RemainingCredit(),
		LastUpdate:      meter.LastUpdate(),
	}
}

func (m MeterData) Fields() Fields {
	return Fields{
		Type:            m.Type,
		No:              m.No,
		Unit:            m.Unit,
		RemainingUnit:   m.RemainingUnit,
		RemainingCredit: m.RemainingCredit,
		LastUpdate:      m.LastUpdate,
	}
}

func (m MeterData) Name() string        { return m.Fields().Name() }
func (m MeterData) UniqueID() string    { return m.Fields().UniqueID() }
func (m MeterData) StatisticID() string { return m.Fields().StatisticID() }

func (m MeterData) Metadata() statistics.Metadata { return m.Fields().Metadata() }

func (f Fields) Name() string {
	return f.Type + " Meter " + f.No
}

func (f Fields) UniqueID() string {
	return Slugify(f.Name())
}

// StatisticID is the id of the long-term statistic of this meter's sensor.
func (f Fields) StatisticID() string {
	return "sensor." + f.UniqueID()
}

func (f Fields) Metadata() statistics.Metadata {
	return statistics.Metadata{
		StatisticID: f.StatisticID(),
		Name:        f.Name(),
		Source:      "recorder",
		Unit:        f.Unit,
		HasMean:     false,
		HasSum:      true,
	}
}

// Slugify lowercases and strips s down to an identifier joined by underscores.
func Slugify(s string) string {
	return strings.ReplaceAll(slug.Make(s), "-", "_")
}
