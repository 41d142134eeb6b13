package statistics

import (
	"math"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
)

// SamplesFromConsumptions converts upstream hourly consumptions into samples.
func SamplesFromConsumptions(consumptions []usms.HourlyConsumption) []Sample {
	samples := make([]Sample, 0, len(consumptions))
	for _, c := range consumptions {
		samples = append(samples, Sample{Start: c.Start, Value: c.Consumption})
	}
	return samples
}

// Normalize turns fetched samples into a state-only table.
// Starts are truncated to the hour in Brunei time and the last sample wins on
// duplicate hours. Values are not validated.
func Normalize(samples []Sample) *Table {
	rows := make([]Row, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, Row{
			Start: aggregator.HourStart(s.Start, Brunei),
			State: s.Value,
		})
	}
	return NewTable(rows)
}

// RecordFromEpoch builds a record from a start given in epoch seconds.
func RecordFromEpoch(seconds float64, state, sum float64) Record {
	whole, frac := math.Modf(seconds)
	return Record{
		Start: time.Unix(int64(whole), int64(frac*1e9)).In(Brunei),
		State: state,
		Sum:   sum,
	}
}

// ToCanonical converts persisted records into a table with state and sum.
// An empty input gives an empty, usable table.
func ToCanonical(records []Record) *Table {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			Start:  r.Start.In(Brunei),
			State:  r.State,
			Sum:    r.Sum,
			HasSum: true,
		})
	}
	return NewTable(rows)
}

// ToPersisted converts a table back into records, one per row.
func ToPersisted(t *Table) []Record {
	rows := t.Rows()
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			Start: row.Start,
			State: row.State,
			Sum:   row.Sum,
		})
	}
	return records
}
