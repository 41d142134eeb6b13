package statistics

import (
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
)

// MissingDays lists the calendar days, from the first recorded day up to and
// including yesterday, that have fewer than 24 hourly rows in prior.
// Days are midnights in Brunei time, ascending. Nothing is reported for an
// empty table since there is no baseline to compare against.
func MissingDays(prior *Table, now time.Time) []time.Time {
	first, ok := prior.First()
	if !ok {
		return []time.Time{}
	}

	rowsPerDay := make(map[int64]int)
	for _, row := range prior.Rows() {
		rowsPerDay[aggregator.DayStart(row.Start, Brunei).Unix()]++
	}

	yesterday := aggregator.DayStart(now, Brunei).AddDate(0, 0, -1)
	missing := []time.Time{}
	for day := aggregator.DayStart(first.Start, Brunei); !day.After(yesterday); day = day.AddDate(0, 0, 1) {
		if rowsPerDay[day.Unix()] < HoursPerDay {
			missing = append(missing, day)
		}
	}
	return missing
}
