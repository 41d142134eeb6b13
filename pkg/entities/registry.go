package entities

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/NotCoffee418/usms_meter/pkg/coordinator"
	"github.com/NotCoffee418/usms_meter/pkg/meterdata"
)

// Registry holds the sensors and buttons of every coordinator, by unique id.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]*SensorEntity
	buttons map[string]*Button

	onChange func(SensorState)
}

func NewRegistry() *Registry {
	return &Registry{
		sensors: make(map[string]*SensorEntity),
		buttons: make(map[string]*Button),
	}
}

// OnStateChange sets fn to be called whenever a sensor adopts a new snapshot.
// Must be set before coordinators are added.
func (r *Registry) OnStateChange(fn func(SensorState)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// AddCoordinator creates entities for the meters in the coordinator's current
// snapshot and keeps them following its refreshes. Meters showing up in a
// later refresh get their entities then.
func (r *Registry) AddCoordinator(ctx context.Context, c *coordinator.Coordinator) {
	r.addMeters(ctx, c, c.Data())
	c.AddListener(func(ctx context.Context, data []meterdata.MeterData) {
		added := r.addMeters(ctx, c, data)
		for _, sensor := range r.sensorsOf(c) {
			if !added[sensor.UniqueID()] {
				sensor.HandleCoordinatorUpdate(ctx, data)
			}
		}
	})
}

// addMeters creates entities for meters without a sensor yet, reports each
// new sensor to the state change callback and returns their unique ids.
func (r *Registry) addMeters(ctx context.Context, c *coordinator.Coordinator, data []meterdata.MeterData) map[string]bool {
	added, onChange := r.createEntities(ctx, c, data)
	if onChange != nil {
		for _, sensor := range added {
			onChange(sensor.State())
		}
	}

	ids := make(map[string]bool, len(added))
	for _, sensor := range added {
		ids[sensor.UniqueID()] = true
	}
	return ids
}

func (r *Registry) createEntities(ctx context.Context, c *coordinator.Coordinator, data []meterdata.MeterData) ([]*SensorEntity, func(SensorState)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := []*SensorEntity{}
	for _, md := range data {
		if _, ok := r.sensors[md.UniqueID()]; ok {
			continue
		}
		sensor := NewSensorEntity(c, md, r.onChange)
		// rows computed before the sensor existed are written now
		sensor.importPending(ctx, md)
		r.sensors[sensor.UniqueID()] = sensor
		added = append(added, sensor)

		for _, button := range MeterButtons(c, md) {
			r.buttons[button.UniqueID()] = button
		}
	}
	return added, r.onChange
}

func (r *Registry) sensorsOf(c *coordinator.Coordinator) []*SensorEntity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sensors := make([]*SensorEntity, 0)
	for _, s := range r.sensors {
		if s.coordinator == c {
			sensors = append(sensors, s)
		}
	}
	return sensors
}

// Sensors returns the state of every sensor ordered by unique id.
func (r *Registry) Sensors() []SensorState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]SensorState, 0, len(r.sensors))
	for _, s := range r.sensors {
		states = append(states, s.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UniqueID < states[j].UniqueID })
	return states
}

func (r *Registry) Sensor(uniqueID string) (SensorState, error) {
	r.mu.RLock()
	s, ok := r.sensors[uniqueID]
	r.mu.RUnlock()
	if !ok {
		return SensorState{}, fmt.Errorf("%w: sensor %s", ErrUnknownEntity, uniqueID)
	}
	return s.State(), nil
}

// Buttons returns every button ordered by unique id.
func (r *Registry) Buttons() []ButtonState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make([]ButtonState, 0, len(r.buttons))
	for _, b := range r.buttons {
		states = append(states, b.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UniqueID < states[j].UniqueID })
	return states
}

func (r *Registry) Press(ctx context.Context, uniqueID string) (PressResult, error) {
	r.mu.RLock()
	b, ok := r.buttons[uniqueID]
	r.mu.RUnlock()
	if !ok {
		return PressResult{}, fmt.Errorf("%w: button %s", ErrUnknownEntity, uniqueID)
	}

	imported, err := b.Press(ctx)
	if err != nil {
		return PressResult{}, err
	}
	return PressResult{UniqueID: uniqueID, ImportedRows: imported}, nil
}
