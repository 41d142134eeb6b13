package entities

import (
	"context"
	"strings"
	"sync"

	"github.com/NotCoffee418/usms_meter/pkg/coordinator"
	"github.com/NotCoffee418/usms_meter/pkg/meterdata"
	"github.com/NotCoffee418/usms_meter/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

// DeviceClassOf maps a USMS meter type to a sensor device class.
// Unknown types have no device class.
func DeviceClassOf(meterType string) string {
	t := strings.ToUpper(meterType)
	switch {
	case strings.Contains(t, "ELECTRIC"), strings.Contains(t, "ENERGY"):
		return DeviceClassEnergy
	case strings.Contains(t, "WATER"):
		return DeviceClassWater
	}
	return ""
}

func SensorStateOf(md meterdata.MeterData, available bool) SensorState {
	return SensorState{
		UniqueID:    md.UniqueID(),
		Name:        md.Name(),
		State:       md.RemainingUnit,
		Unit:        md.Unit,
		DeviceClass: DeviceClassOf(md.Type),
		Attribution: Attribution,
		Available:   available,
		Device: DeviceInfo{
			Manufacturer: Manufacturer,
			Model:        md.Name(),
		},
		Attributes: SensorAttributes{
			Credit:               md.RemainingCredit,
			Unit:                 md.RemainingUnit,
			LastUpdate:           md.LastUpdate,
			LastRefresh:          md.LastRefresh,
			NextRefresh:          md.NextRefresh,
			Currency:             md.Currency,
			LastMonthConsumption: md.LastMonth.Consumption,
			LastMonthCost:        md.LastMonth.Cost,
			ThisMonthConsumption: md.ThisMonth.Consumption,
			ThisMonthCost:        md.ThisMonth.Cost,
		},
	}
}

// SensorEntity is the sensor of one meter. It follows its coordinator's
// snapshots and writes their pending statistic rows to the store.
type SensorEntity struct {
	coordinator *coordinator.Coordinator
	onChange    func(SensorState)

	mu   sync.RWMutex
	data meterdata.MeterData
}

func NewSensorEntity(c *coordinator.Coordinator, md meterdata.MeterData, onChange func(SensorState)) *SensorEntity {
	return &SensorEntity{
		coordinator: c,
		onChange:    onChange,
		data:        md,
	}
}

func (s *SensorEntity) UniqueID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UniqueID()
}

func (s *SensorEntity) MeterNo() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.No
}

func (s *SensorEntity) State() SensorState {
	s.mu.RLock()
	md := s.data
	s.mu.RUnlock()

	state := SensorStateOf(md, s.coordinator.LastUpdateSuccess())
	state.Device.Account = s.coordinator.Account().Username()
	return state
}

// HandleCoordinatorUpdate imports the pending statistic rows of this meter's
// new snapshot and adopts the snapshot if it comes from a newer refresh.
func (s *SensorEntity) HandleCoordinatorUpdate(ctx context.Context, data []meterdata.MeterData) {
	no := s.MeterNo()
	var latest *meterdata.MeterData
	for i := range data {
		if data[i].No == no {
			latest = &data[i]
			break
		}
	}
	if latest == nil {
		return
	}

	s.importPending(ctx, *latest)

	s.mu.Lock()
	current := s.data
	changed := !current.LastRefresh.Equal(latest.LastRefresh)
	if changed {
		s.data = *latest
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	if !current.LastUpdate.Equal(latest.LastUpdate) {
		log.Infof("%s was updated", latest.Name())
	} else {
		log.Infof("%s was refreshed, but no new updates were found", latest.Name())
	}
	if s.onChange != nil {
		s.onChange(s.State())
	}
}

func (s *SensorEntity) importPending(ctx context.Context, md meterdata.MeterData) {
	if len(md.NewStatistics) == 0 {
		return
	}

	log.Infof("Importing %d new statistics for statistic_id: %s", len(md.NewStatistics), md.StatisticID())
	if err := s.coordinator.Store().Import(ctx, md.Metadata(), md.NewStatistics); err != nil {
		log.WithError(err).Errorf("Failed to import statistics for %s", md.StatisticID())
		return
	}
	metrics.AddImportedRows(md.StatisticID(), len(md.NewStatistics))
}
