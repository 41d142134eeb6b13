package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/meterdata"
	"github.com/NotCoffee418/usms_meter/pkg/statistics"
)

var (
	// ErrReauthRequired means USMS rejected the account's credentials.
	// Polling stops until the account is configured again.
	ErrReauthRequired = errors.New("usms credentials rejected, reauthentication required")

	// ErrUpdateFailed is any other refresh failure. The next cycle retries.
	ErrUpdateFailed = errors.New("usms update failed")

	ErrUnknownMeter = errors.New("unknown meter")
)

const (
	defaultUpdateInterval = time.Hour

	// recentDays is how many days before today an incremental refresh fetches.
	recentDays = 2
)

// Store is the long-term statistics store the coordinator reads and buttons write.
type Store interface {
	Statistics(ctx context.Context, statisticID string) ([]statistics.Record, error)
	Import(ctx context.Context, meta statistics.Metadata, records []statistics.Record) error
}

// Listener is called with the new snapshot after every successful refresh.
type Listener func(ctx context.Context, data []meterdata.MeterData)

type Option func(*Coordinator)

func WithUpdateInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithBackfillOnColdStart makes the first refresh of a meter fetch its whole
// hourly history and reconcile it against the recorded statistic.
func WithBackfillOnColdStart(enabled bool) Option {
	return func(c *Coordinator) { c.backfillOnStart = enabled }
}
