package entities

import (
	"context"
	"fmt"

	"github.com/NotCoffee418/usms_meter/pkg/coordinator"
	"github.com/NotCoffee418/usms_meter/pkg/meterdata"
	"github.com/NotCoffee418/usms_meter/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

type Button struct {
	coordinator *coordinator.Coordinator
	meterNo     string
	meterName   string
	action      ButtonAction
}

// MeterButtons returns every button of a meter.
func MeterButtons(c *coordinator.Coordinator, md meterdata.MeterData) []*Button {
	actions := []ButtonAction{
		ActionImportHistory,
		ActionBackfillMissingDays,
		ActionRecalculateStatistics,
	}
	buttons := make([]*Button, 0, len(actions))
	for _, action := range actions {
		buttons = append(buttons, &Button{
			coordinator: c,
			meterNo:     md.No,
			meterName:   md.Name(),
			action:      action,
		})
	}
	return buttons
}

func (b *Button) Name() string {
	switch b.action {
	case ActionImportHistory:
		return b.meterName + " Download and Import History"
	case ActionBackfillMissingDays:
		return b.meterName + " Backfill Missing Days"
	case ActionRecalculateStatistics:
		return b.meterName + " Recalculate Statistics"
	}
	return b.meterName
}

func (b *Button) UniqueID() string {
	return meterdata.Slugify(b.Name())
}

func (b *Button) DeviceClass() string {
	if b.action == ActionRecalculateStatistics {
		return DeviceClassRestart
	}
	return DeviceClassUpdate
}

func (b *Button) State() ButtonState {
	return ButtonState{
		UniqueID:    b.UniqueID(),
		Name:        b.Name(),
		DeviceClass: b.DeviceClass(),
		Action:      b.action,
		MeterNo:     b.meterNo,
		Device: DeviceInfo{
			Manufacturer: Manufacturer,
			Model:        b.meterName,
			Account:      b.coordinator.Account().Username(),
		},
	}
}

// Press runs the button's action to completion and returns how many statistic
// rows were written.
func (b *Button) Press(ctx context.Context) (int, error) {
	log.Infof("%s pressed, please wait...", b.Name())

	var (
		imported int
		err      error
	)
	switch b.action {
	case ActionImportHistory:
		imported, err = b.coordinator.ImportHistory(ctx, b.meterNo)
	case ActionBackfillMissingDays:
		imported, err = b.coordinator.BackfillMissingDays(ctx, b.meterNo)
	case ActionRecalculateStatistics:
		imported, err = b.coordinator.RecalculateStatistics(ctx, b.meterNo)
	default:
		err = fmt.Errorf("%w: action %s", ErrUnknownEntity, b.action)
	}

	if err != nil {
		metrics.IncButtonPress(string(b.action), metrics.ResultError)
		log.WithError(err).Errorf("%s failed", b.Name())
		return 0, err
	}
	metrics.IncButtonPress(string(b.action), metrics.ResultSuccess)
	log.Infof("%s finished, %d statistic rows written", b.Name(), imported)
	return imported, nil
}
