// Package coordinator refreshes a USMS account on an interval and builds a
// MeterData snapshot per meter, including the statistic rows that need to
// be written back.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/aggregator"
	"github.com/NotCoffee418/usms_meter/pkg/meterdata"
	"github.com/NotCoffee418/usms_meter/pkg/metrics"
	"github.com/NotCoffee418/usms_meter/pkg/statistics"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Coordinator struct {
	account         usms.Account
	store           Store
	interval        time.Duration
	now             func() time.Time
	backfillOnStart bool

	// cycleMu serializes refresh cycles and button actions.
	cycleMu sync.Mutex

	mu          sync.RWMutex
	data        []meterdata.MeterData
	lastSuccess bool
	lastErr     error
	listeners   []Listener
}

func New(account usms.Account, store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		account:  account,
		store:    store,
		interval: defaultUpdateInterval,
		now:      time.Now,
		data:     []meterdata.MeterData{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Account() usms.Account { return c.account }
func (c *Coordinator) Store() Store          { return c.store }

// AddListener registers fn to receive every published snapshot.
func (c *Coordinator) AddListener(fn Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Data returns the last published snapshot. Empty until the first successful refresh.
func (c *Coordinator) Data() []meterdata.MeterData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]meterdata.MeterData{}, c.data...)
}

func (c *Coordinator) MeterByNo(no string) (meterdata.MeterData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.data {
		if m.No == no {
			return m, true
		}
	}
	return meterdata.MeterData{}, false
}

func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Exclusive runs fn while no refresh cycle is in progress.
func (c *Coordinator) Exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	return fn(ctx)
}

// Run refreshes immediately and then once per interval until ctx is done.
// It returns early with ErrReauthRequired when the credentials are rejected.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Refresh(ctx); errors.Is(err, ErrReauthRequired) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh runs one update cycle. On success the snapshot is replaced and
// listeners are notified. On failure the previous snapshot stays published.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	entry := log.WithFields(log.Fields{
		"account": c.account.Username(),
		"run":     uuid.NewString(),
	})
	started := time.Now()

	data, err := c.update(ctx, entry)

	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, ErrReauthRequired):
		result = metrics.ResultReauth
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveRefresh(result, time.Since(started))

	c.mu.Lock()
	c.lastErr = err
	c.lastSuccess = err == nil
	if err == nil {
		c.data = data
	}
	listeners := append([]Listener{}, c.listeners...)
	c.mu.Unlock()

	if err != nil {
		entry.WithError(err).Error("Refresh failed")
		return err
	}

	for _, fn := range listeners {
		fn(ctx, append([]meterdata.MeterData{}, data...))
	}
	return nil
}

func (c *Coordinator) update(ctx context.Context, entry *log.Entry) ([]meterdata.MeterData, error) {
	previous := make(map[string]meterdata.MeterData)
	for _, m := range c.Data() {
		previous[m.No] = m
	}

	hasUpdates := false
	if c.account.IsUpdateDue() {
		entry.Debug("Account is due for an update")
		var err error
		hasUpdates, err = c.account.RefreshData(ctx)
		if err != nil {
			return nil, classify(err)
		}
		if hasUpdates {
			entry.Debug("Account has new meter readings")
		}
	}

	now := c.now()
	meters := c.account.Meters()
	data := make([]meterdata.MeterData, 0, len(meters))
	for _, meter := range meters {
		prev, known := previous[meter.No()]
		var prevPtr *meterdata.MeterData
		if known {
			prevPtr = &prev
		}

		md, err := c.updateMeter(ctx, entry, meter, prevPtr, hasUpdates, now)
		if err != nil {
			return nil, classify(err)
		}
		data = append(data, md)
	}
	return data, nil
}

// updateMeter builds the snapshot of one meter. prev is nil when the meter
// has no snapshot yet, which is treated as a cold start.
func (c *Coordinator) updateMeter(
	ctx context.Context,
	entry *log.Entry,
	meter usms.Meter,
	prev *meterdata.MeterData,
	hasUpdates bool,
	now time.Time,
) (meterdata.MeterData, error) {
	fields := meterdata.FieldsOf(meter)
	entry = entry.WithField("meter", fields.No)
	cold := prev == nil

	var lastMonth, thisMonth aggregator.Totals
	if !cold {
		lastMonth, thisMonth = prev.LastMonth, prev.ThisMonth
	}

	// USMS keeps revising the previous month for a few days after it ends
	if cold || (hasUpdates && aggregator.IsBillingWindow(now, statistics.Brunei)) {
		entry.Debug("Updating last month consumption")
		days, err := meter.PreviousNMonthConsumptions(ctx, 1)
		if err != nil {
			return meterdata.MeterData{}, err
		}
		lastMonth = aggregator.MonthTotals(days)
	}

	if cold || hasUpdates {
		entry.Debug("Updating this month consumption")
		days, err := meter.PreviousNMonthConsumptions(ctx, 0)
		if err != nil {
			return meterdata.MeterData{}, err
		}
		thisMonth = aggregator.MonthTotals(days)
	}

	var delta []statistics.Record
	var err error
	switch {
	case cold && c.backfillOnStart:
		entry.Debug("Backfilling full consumption history")
		delta, err = c.reconcileHistory(ctx, meter, fields)
	case !cold && hasUpdates:
		entry.Debug("Reconciling recent hourly consumption")
		delta, err = c.reconcileRecent(ctx, entry, meter, fields, now)
	}
	if err != nil {
		return meterdata.MeterData{}, err
	}
	if len(delta) > 0 {
		entry.Debugf("Found %d new or changed statistic rows", len(delta))
	}

	return meterdata.New(
		fields,
		c.account.LastRefresh(),
		c.account.NextRefresh(),
		lastMonth,
		thisMonth,
		delta,
	), nil
}

func classify(err error) error {
	if errors.Is(err, usms.ErrLogin) {
		return fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}
	return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
}
