package entity

import (
	"github.com/joshp123/omhome/internal/resource"
)

// State is the current view of one entity. Platform-specific blocks are nil
// for other platforms and for unavailable entities.
type State struct {
	Descriptor
	Available bool `json:"available"`

	On         *bool    `json:"on,omitempty"`
	Brightness *int     `json:"brightness,omitempty"`
	ColorMode  string   `json:"color_mode,omitempty"`
	ColorModes []string `json:"color_modes,omitempty"`
	Icon       string   `json:"icon,omitempty"`

	Cover   *CoverState   `json:"cover,omitempty"`
	Climate *ClimateState `json:"climate,omitempty"`
	Sensor  *SensorState  `json:"sensor,omitempty"`
}

// Cover states.
const (
	CoverOpen    = "open"
	CoverOpening = "opening"
	CoverClosed  = "closed"
	CoverClosing = "closing"
	CoverPaused  = "paused"
	CoverUnknown = "unknown"
)

type CoverState struct {
	State            string `json:"state"`
	Position         *int   `json:"position,omitempty"`
	Closed           *bool  `json:"closed,omitempty"`
	SupportsPosition bool   `json:"supports_position"`
}

type ClimateState struct {
	HVACMode           string   `json:"hvac_mode"`
	HVACModes          []string `json:"hvac_modes"`
	HVACAction         string   `json:"hvac_action,omitempty"`
	Preset             string   `json:"preset,omitempty"`
	Presets            []string `json:"presets"`
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	TargetTemperature  *float64 `json:"target_temperature,omitempty"`
	MinTemperature     float64  `json:"min_temperature"`
	MaxTemperature     float64  `json:"max_temperature"`
	Unit               string   `json:"unit"`
}

type SensorState struct {
	Value       *float64 `json:"value,omitempty"`
	Unit        string   `json:"unit"`
	DeviceClass string   `json:"device_class"`
}

// StateOf reads the entity's record from snap. A missing record yields an
// unavailable state.
func StateOf(d Descriptor, snap *resource.Snapshot) State {
	state := State{Descriptor: d}
	switch d.Platform {
	case PlatformLight:
		lightState(&state, snap)
	case PlatformSwitch:
		switchState(&state, snap)
	case PlatformCover:
		coverState(&state, snap)
	case PlatformClimate:
		climateState(&state, snap)
	case PlatformSensor:
		sensorState(&state, snap)
	case PlatformScene:
		_, state.Available = snap.GroupAction(d.ID)
	}
	return state
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
