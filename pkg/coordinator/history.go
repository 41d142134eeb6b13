package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/meterdata"
	"github.com/NotCoffee418/usms_meter/pkg/metrics"
	"github.com/NotCoffee418/usms_meter/pkg/statistics"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
	log "github.com/sirupsen/logrus"
)

// reconcileHistory fetches the full hourly history and returns the rows that
// differ from the recorded statistic.
func (c *Coordinator) reconcileHistory(ctx context.Context, meter usms.Meter, fields meterdata.Fields) ([]statistics.Record, error) {
	history, err := meter.AllHourlyConsumptions(ctx)
	if err != nil {
		return nil, err
	}
	prior, err := c.recorded(ctx, fields)
	if err != nil {
		return nil, err
	}

	fresh := statistics.Normalize(statistics.SamplesFromConsumptions(history))
	return statistics.ToPersisted(statistics.Reconcile(prior, fresh)), nil
}

// reconcileRecent fetches the last days of hourly consumption plus every
// past day the recorded statistic is missing hours for, and returns the rows
// that differ from the recorded statistic.
func (c *Coordinator) reconcileRecent(
	ctx context.Context,
	entry *log.Entry,
	meter usms.Meter,
	fields meterdata.Fields,
	now time.Time,
) ([]statistics.Record, error) {
	recent, err := meter.LastNDaysHourlyConsumptions(ctx, recentDays)
	if err != nil {
		return nil, err
	}
	prior, err := c.recorded(ctx, fields)
	if err != nil {
		return nil, err
	}

	samples, err := c.fetchMissingDays(ctx, entry, meter, fields, prior, now)
	if err != nil {
		return nil, err
	}
	// recent goes last so it wins over an overlapping gap day
	samples = append(samples, statistics.SamplesFromConsumptions(recent)...)

	return statistics.ToPersisted(statistics.Reconcile(prior, statistics.Normalize(samples))), nil
}

func (c *Coordinator) fetchMissingDays(
	ctx context.Context,
	entry *log.Entry,
	meter usms.Meter,
	fields meterdata.Fields,
	prior *statistics.Table,
	now time.Time,
) ([]statistics.Sample, error) {
	missing := statistics.MissingDays(prior, now)
	metrics.AddGapDays(fields.StatisticID(), len(missing))

	samples := []statistics.Sample{}
	for _, day := range missing {
		entry.Debugf("Fetching missing day %s", day.Format(time.DateOnly))
		hourly, err := meter.HourlyConsumptions(ctx, day)
		if err != nil {
			return nil, err
		}
		samples = append(samples, statistics.SamplesFromConsumptions(hourly)...)
	}
	return samples, nil
}

func (c *Coordinator) recorded(ctx context.Context, fields meterdata.Fields) (*statistics.Table, error) {
	records, err := c.store.Statistics(ctx, fields.StatisticID())
	if err != nil {
		return nil, fmt.Errorf("failed to read statistic %s: %w", fields.StatisticID(), err)
	}
	return statistics.ToCanonical(records), nil
}

func (c *Coordinator) meter(no string) (usms.Meter, error) {
	for _, m := range c.account.Meters() {
		if m.No() == no {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMeter, no)
}

func (c *Coordinator) importRecords(ctx context.Context, fields meterdata.Fields, records []statistics.Record) error {
	if err := c.store.Import(ctx, fields.Metadata(), records); err != nil {
		return fmt.Errorf("failed to import statistic %s: %w", fields.StatisticID(), err)
	}
	metrics.AddImportedRows(fields.StatisticID(), len(records))
	return nil
}

// ImportHistory downloads the meter's full hourly history and replaces the
// recorded statistic with it, sums counted from the first hour.
// Returns the number of rows imported.
func (c *Coordinator) ImportHistory(ctx context.Context, no string) (int, error) {
	var imported int
	err := c.Exclusive(ctx, func(ctx context.Context) error {
		meter, err := c.meter(no)
		if err != nil {
			return err
		}
		fields := meterdata.FieldsOf(meter)

		history, err := meter.AllHourlyConsumptions(ctx)
		if err != nil {
			return classify(err)
		}
		table := statistics.Normalize(statistics.SamplesFromConsumptions(history)).WithCumulativeSum()
		records := statistics.ToPersisted(table)
		if err := c.importRecords(ctx, fields, records); err != nil {
			return err
		}
		imported = len(records)
		return nil
	})
	return imported, err
}

// BackfillMissingDays fetches every past day the recorded statistic has
// incomplete hours for and writes back the rows that changed.
func (c *Coordinator) BackfillMissingDays(ctx context.Context, no string) (int, error) {
	var imported int
	err := c.Exclusive(ctx, func(ctx context.Context) error {
		meter, err := c.meter(no)
		if err != nil {
			return err
		}
		fields := meterdata.FieldsOf(meter)
		entry := log.WithFields(log.Fields{"account": c.account.Username(), "meter": no})

		prior, err := c.recorded(ctx, fields)
		if err != nil {
			return err
		}
		samples, err := c.fetchMissingDays(ctx, entry, meter, fields, prior, c.now())
		if err != nil {
			return classify(err)
		}
		if len(samples) == 0 {
			entry.Info("No missing days to backfill")
			return nil
		}

		delta := statistics.ToPersisted(statistics.Reconcile(prior, statistics.Normalize(samples)))
		if err := c.importRecords(ctx, fields, delta); err != nil {
			return err
		}
		imported = len(delta)
		return nil
	})
	return imported, err
}

// RecalculateStatistics recomputes the running sum over the recorded
// statistic and writes the whole series back.
func (c *Coordinator) RecalculateStatistics(ctx context.Context, no string) (int, error) {
	var imported int
	err := c.Exclusive(ctx, func(ctx context.Context) error {
		meter, err := c.meter(no)
		if err != nil {
			return err
		}
		fields := meterdata.FieldsOf(meter)

		prior, err := c.recorded(ctx, fields)
		if err != nil {
			return err
		}
		if prior.IsEmpty() {
			return nil
		}
		records := statistics.ToPersisted(statistics.Recalculate(prior))
		if err := c.importRecords(ctx, fields, records); err != nil {
			return err
		}
		imported = len(records)
		return nil
	})
	return imported, err
}
