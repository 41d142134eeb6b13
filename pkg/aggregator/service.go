package aggregator

import (
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/usms"
	"github.com/shopspring/decimal"
)

// HourStart returns the start of the hour containing t, expressed in loc.
func HourStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

// DayStart returns midnight of the calendar day containing t in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// IsBillingWindow reports whether t falls in the first three days of its month,
// when USMS may still be revising the previous month's totals.
func IsBillingWindow(t time.Time, loc *time.Location) bool {
	return t.In(loc).Day() <= billingWindowDays
}

// MonthTotals sums the daily consumptions and costs of a month.
func MonthTotals(days []usms.DailyConsumption) Totals {
	consumption := decimal.Zero
	cost := decimal.Zero
	for _, day := range days {
		consumption = consumption.Add(decimal.NewFromFloat(day.Consumption))
		cost = cost.Add(decimal.NewFromFloat(day.Cost))
	}

	return Totals{
		Consumption: consumption.InexactFloat64(),
		Cost:        cost.Round(2).InexactFloat64(),
		Days:        len(days),
	}
}
