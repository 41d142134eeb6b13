// Package usmstest provides in-memory USMS accounts and meters for tests.
package usmstest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
)

// Meter serves canned consumption data and records every fetch made against it.
type Meter struct {
	MeterType string
	Number    string
	MeterUnit string
	Remaining float64
	Credit    float64
	Updated   time.Time

	// History is returned by AllHourlyConsumptions and filtered per day by
	// HourlyConsumptions.
	History []usms.HourlyConsumption
	// Recent is returned by LastNDaysHourlyConsumptions.
	Recent []usms.HourlyConsumption
	// Months maps a month offset to its daily consumptions.
	Months map[int][]usms.DailyConsumption

	// Err fails every fetch when set.
	Err error

	mu    sync.Mutex
	calls []string
}

var _ usms.Meter = (*Meter)(nil)

func (m *Meter) Type() string             { return m.MeterType }
func (m *Meter) No() string               { return m.Number }
func (m *Meter) Unit() string             { return m.MeterUnit }
func (m *Meter) RemainingUnit() float64   { return m.Remaining }
func (m *Meter) RemainingCredit() float64 { return m.Credit }
func (m *Meter) LastUpdate() time.Time    { return m.Updated }

func (m *Meter) HourlyConsumptions(ctx context.Context, day time.Time) ([]usms.HourlyConsumption, error) {
	if err := m.record("hourly:" + day.Format(time.DateOnly)); err != nil {
		return nil, err
	}
	result := []usms.HourlyConsumption{}
	for _, h := range m.History {
		if aggregator.DayStart(h.Start, day.Location()).Equal(day) {
			result = append(result, h)
		}
	}
	return result, nil
}

func (m *Meter) LastNDaysHourlyConsumptions(ctx context.Context, n int) ([]usms.HourlyConsumption, error) {
	if err := m.record("last_days:" + strconv.Itoa(n)); err != nil {
		return nil, err
	}
	return m.Recent, nil
}

func (m *Meter) AllHourlyConsumptions(ctx context.Context) ([]usms.HourlyConsumption, error) {
	if err := m.record("all"); err != nil {
		return nil, err
	}
	return m.History, nil
}

func (m *Meter) PreviousNMonthConsumptions(ctx context.Context, n int) ([]usms.DailyConsumption, error) {
	if err := m.record("monthly:" + strconv.Itoa(n)); err != nil {
		return nil, err
	}
	return m.Months[n], nil
}

// Calls returns the fetches made so far, in order.
func (m *Meter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

func (m *Meter) ResetCalls() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

func (m *Meter) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.Err
}

// Account is a USMS account whose staleness and refresh outcome are set by the test.
type Account struct {
	User       string
	Due        bool
	HasUpdates bool
	RefreshErr error
	Last       time.Time
	Next       time.Time
	MeterList  []*Meter

	mu           sync.Mutex
	refreshCalls int
}

var _ usms.Account = (*Account)(nil)

func (a *Account) Username() string { return a.User }

func (a *Account) IsUpdateDue() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Due
}

func (a *Account) RefreshData(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshCalls++
	if a.RefreshErr != nil {
		return false, a.RefreshErr
	}
	return a.HasUpdates, nil
}

func (a *Account) RefreshCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls
}

func (a *Account) LastRefresh() time.Time { return a.Last }
func (a *Account) NextRefresh() time.Time { return a.Next }

func (a *Account) Meters() []usms.Meter {
	meters := make([]usms.Meter, 0, len(a.MeterList))
	for _, m := range a.MeterList {
		meters = append(meters, m)
	}
	return meters
}

// Set changes the staleness and refresh outcome between cycles.
func (a *Account) Set(due, hasUpdates bool, refreshErr error) {
	a.mu.Lock()
	a.Due, a.HasUpdates, a.RefreshErr = due, hasUpdates, refreshErr
	a.mu.Unlock()
}
