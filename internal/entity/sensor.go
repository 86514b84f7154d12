package entity

import (
	"context"

	"github.com/joshp123/omhome/internal/resource"
)

const (
	quantityPower   = "power"
	quantityVoltage = "voltage"
	quantityCurrent = "current"
)

var energyQuantities = []string{quantityPower, quantityVoltage, quantityCurrent}

var sensorUnits = map[string]struct {
	unit        string
	deviceClass string
}{
	resource.QuantityTemperature: {"°C", "temperature"},
	resource.QuantityHumidity:    {"%", "humidity"},
	resource.QuantityBrightness:  {"%", "illuminance"},
	quantityPower:                {"W", "power"},
	quantityVoltage:              {"V", "voltage"},
	quantityCurrent:              {"A", "current"},
}

func sensorState(state *State, snap *resource.Snapshot) {
	var value *float64
	switch state.Kind {
	case resource.KindSensor:
		s, ok := snap.Sensor(state.ID)
		if !ok {
			return
		}
		value = s.Status.Reading(state.Quantity)
	case resource.KindEnergySensor:
		e, ok := snap.EnergySensor(state.ID)
		if !ok {
			return
		}
		switch state.Quantity {
		case quantityPower:
			value = e.Status.Power
		case quantityVoltage:
			value = e.Status.Voltage
		case quantityCurrent:
			value = e.Status.Current
		}
	default:
		return
	}

	units := sensorUnits[state.Quantity]
	state.Available = true
	state.Sensor = &SensorState{Value: value, Unit: units.unit, DeviceClass: units.deviceClass}
}

// ActivateScene triggers a group action.
func (s *Service) ActivateScene(ctx context.Context, key string) error {
	d, err := s.available(key, PlatformScene)
	if err != nil {
		return err
	}
	return s.execute(ctx, resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpTrigger}, nil)
}
