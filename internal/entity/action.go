package entity

import (
	"context"
	"fmt"
)

// Action names accepted by Do.
const (
	ActionTurnOn         = "turn_on"
	ActionTurnOff        = "turn_off"
	ActionToggle         = "toggle"
	ActionOpen           = "open"
	ActionClose          = "close"
	ActionStop           = "stop"
	ActionSetPosition    = "set_position"
	ActionSetTemperature = "set_temperature"
	ActionSetHVACMode    = "set_hvac_mode"
	ActionSetPreset      = "set_preset"
	ActionActivate       = "activate"
)

// Action is a transport-neutral command request, as decoded from HTTP or MQTT.
type Action struct {
	Name        string   `json:"action"`
	Brightness  *int     `json:"brightness,omitempty"`
	Position    *int     `json:"position,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	HVACMode    string   `json:"hvac_mode,omitempty"`
	Preset      string   `json:"preset,omitempty"`
}

// Do routes an action to the entity's platform.
func (s *Service) Do(ctx context.Context, key string, a Action) error {
	d, err := s.target(key, "")
	if err != nil {
		return err
	}

	switch {
	case a.Name == ActionToggle:
		return s.Toggle(ctx, key)
	case d.Platform == PlatformLight && a.Name == ActionTurnOn:
		return s.TurnOnLight(ctx, key, a.Brightness)
	case d.Platform == PlatformLight && a.Name == ActionTurnOff:
		return s.TurnOffLight(ctx, key)
	case d.Platform == PlatformSwitch && a.Name == ActionTurnOn:
		return s.TurnOnSwitch(ctx, key)
	case d.Platform == PlatformSwitch && a.Name == ActionTurnOff:
		return s.TurnOffSwitch(ctx, key)
	case d.Platform == PlatformCover && a.Name == ActionOpen:
		return s.OpenCover(ctx, key)
	case d.Platform == PlatformCover && a.Name == ActionClose:
		return s.CloseCover(ctx, key)
	case d.Platform == PlatformCover && a.Name == ActionStop:
		return s.StopCover(ctx, key)
	case d.Platform == PlatformCover && a.Name == ActionSetPosition:
		if a.Position == nil {
			return fmt.Errorf("position is required: %w", ErrInvalidValue)
		}
		return s.SetCoverPosition(ctx, key, *a.Position)
	case d.Platform == PlatformClimate && a.Name == ActionSetTemperature:
		if a.HVACMode != "" {
			if err := s.SetHVACMode(ctx, key, a.HVACMode); err != nil {
				return err
			}
		}
		if a.Temperature == nil {
			if a.HVACMode != "" {
				return nil
			}
			return fmt.Errorf("temperature is required: %w", ErrInvalidValue)
		}
		return s.SetTemperature(ctx, key, *a.Temperature)
	case d.Platform == PlatformClimate && a.Name == ActionSetHVACMode:
		return s.SetHVACMode(ctx, key, a.HVACMode)
	case d.Platform == PlatformClimate && a.Name == ActionSetPreset:
		return s.SetPreset(ctx, key, a.Preset)
	case d.Platform == PlatformScene && a.Name == ActionActivate:
		return s.ActivateScene(ctx, key)
	}
	return unsupported(d, a.Name)
}
