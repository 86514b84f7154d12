package openmotics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joshp123/omhome/internal/resource"
)

// Legacy gateways answer each action with {"success": bool, ...} and split
// configuration from live status. These helpers merge both halves by id.

// legacyUnset marks an unassigned floor or room byte.
const legacyUnset = 255

const legacyLightType = 255

type legacyConfigReply[T any] struct {
	Config []T `json:"config"`
}

type legacyStatusReply[T any] struct {
	Status []T `json:"status"`
}

type legacyOutputConfig struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	ModuleType string `json:"module_type"`
	Type       int    `json:"type"`
	Floor      *int   `json:"floor"`
	Room       *int   `json:"room"`
}

type legacyOutputStatus struct {
	ID     int  `json:"id"`
	Status int  `json:"status"`
	Dimmer int  `json:"dimmer"`
	Locked bool `json:"locked"`
}

func legacyOutputs(configBody, statusBody []byte) ([]resource.Output, error) {
	var configs legacyConfigReply[legacyOutputConfig]
	if err := json.Unmarshal(configBody, &configs); err != nil {
		return nil, fmt.Errorf("decode output configurations: %w", err)
	}
	var statuses legacyStatusReply[legacyOutputStatus]
	if err := json.Unmarshal(statusBody, &statuses); err != nil {
		return nil, fmt.Errorf("decode output status: %w", err)
	}

	byID := make(map[int]legacyOutputStatus, len(statuses.Status))
	for _, s := range statuses.Status {
		byID[s.ID] = s
	}

	out := make([]resource.Output, 0, len(configs.Config))
	for _, cfg := range configs.Config {
		record := resource.Output{
			Base: resource.Base{
				ID:           cfg.ID,
				LocalID:      cfg.ID,
				Name:         cfg.Name,
				Capabilities: []string{resource.CapabilityOnOff},
				Location:     legacyLocation(cfg.Floor, cfg.Room),
			},
			OutputType: "OUTLET",
		}
		if cfg.Type == legacyLightType {
			record.OutputType = "LIGHT"
		}
		if strings.EqualFold(cfg.ModuleType, "D") {
			record.Capabilities = append(record.Capabilities, resource.CapabilityRange)
		}
		if s, ok := byID[cfg.ID]; ok {
			record.Status = resource.OutputStatus{On: s.Status == 1, Value: s.Dimmer, Locked: s.Locked}
		}
		out = append(out, record)
	}
	return out, nil
}

type legacyShutterConfig struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Steps *int   `json:"steps"`
	Room  *int   `json:"room"`
}

type legacyShutterDetail struct {
	State    string `json:"state"`
	Position *int   `json:"position"`
	Locked   bool   `json:"locked"`
}

type legacyShutterStatus struct {
	Detail map[string]legacyShutterDetail `json:"detail"`
}

var legacyShutterStates = map[string]string{
	"up":         resource.ShutterUp,
	"down":       resource.ShutterDown,
	"going_up":   resource.ShutterGoingUp,
	"going_down": resource.ShutterGoingDown,
	"stopped":    resource.ShutterStop,
	"stop":       resource.ShutterStop,
}

func legacyShutters(configBody, statusBody []byte) ([]resource.Shutter, error) {
	var configs legacyConfigReply[legacyShutterConfig]
	if err := json.Unmarshal(configBody, &configs); err != nil {
		return nil, fmt.Errorf("decode shutter configurations: %w", err)
	}
	var status legacyShutterStatus
	if err := json.Unmarshal(statusBody, &status); err != nil {
		return nil, fmt.Errorf("decode shutter status: %w", err)
	}

	out := make([]resource.Shutter, 0, len(configs.Config))
	for _, cfg := range configs.Config {
		record := resource.Shutter{
			Base: resource.Base{
				ID:       cfg.ID,
				LocalID:  cfg.ID,
				Name:     cfg.Name,
				Location: legacyLocation(nil, cfg.Room),
			},
		}
		if cfg.Steps != nil && *cfg.Steps > 0 && *cfg.Steps < 0xFFFF {
			record.Capabilities = []string{resource.CapabilityPosition}
		}
		if detail, ok := status.Detail[strconv.Itoa(cfg.ID)]; ok {
			record.Status = resource.ShutterStatus{
				State:    legacyShutterStates[strings.ToLower(detail.State)],
				Position: detail.Position,
				Locked:   detail.Locked,
			}
		}
		out = append(out, record)
	}
	return out, nil
}

type legacySensorConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Room *int   `json:"room"`
}

type legacySensorValues struct {
	Status []*float64 `json:"status"`
}

// legacySensors merges configurations with the per-quantity status arrays,
// which are indexed by sensor id.
func legacySensors(configBody, temperatureBody, humidityBody, brightnessBody []byte) ([]resource.Sensor, error) {
	var configs legacyConfigReply[legacySensorConfig]
	if err := json.Unmarshal(configBody, &configs); err != nil {
		return nil, fmt.Errorf("decode sensor configurations: %w", err)
	}
	temperature, err := decodeSensorValues(temperatureBody)
	if err != nil {
		return nil, fmt.Errorf("decode temperature status: %w", err)
	}
	humidity, err := decodeSensorValues(humidityBody)
	if err != nil {
		return nil, fmt.Errorf("decode humidity status: %w", err)
	}
	brightness, err := decodeSensorValues(brightnessBody)
	if err != nil {
		return nil, fmt.Errorf("decode brightness status: %w", err)
	}

	out := make([]resource.Sensor, 0, len(configs.Config))
	for _, cfg := range configs.Config {
		out = append(out, resource.Sensor{
			Base: resource.Base{
				ID:       cfg.ID,
				LocalID:  cfg.ID,
				Name:     cfg.Name,
				Location: legacyLocation(nil, cfg.Room),
			},
			Status: resource.SensorStatus{
				Temperature: valueAt(temperature, cfg.ID),
				Humidity:    valueAt(humidity, cfg.ID),
				Brightness:  valueAt(brightness, cfg.ID),
			},
		})
	}
	return out, nil
}

func decodeSensorValues(body []byte) ([]*float64, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var values legacySensorValues
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, err
	}
	return values.Status, nil
}

func valueAt(values []*float64, index int) *float64 {
	if index < 0 || index >= len(values) {
		return nil
	}
	return values[index]
}

type legacyThermostatStatus struct {
	ThermostatsOn bool  `json:"thermostats_on"`
	Automatic     bool  `json:"automatic"`
	Setpoint      int   `json:"setpoint"`
	Cooling       *bool `json:"cooling"`
	Status        []struct {
		ID    int      `json:"id"`
		Name  string   `json:"name"`
		Act   *float64 `json:"act"`
		Csetp *float64 `json:"csetp"`
	} `json:"status"`
}

// Legacy setpoint slots used as presets.
const (
	legacySetpointAway     = 3
	legacySetpointVacation = 4
	legacySetpointParty    = 5
)

func (s legacyThermostatStatus) preset() string {
	if s.Automatic {
		return resource.PresetAuto
	}
	switch s.Setpoint {
	case legacySetpointAway:
		return resource.PresetAway
	case legacySetpointVacation:
		return resource.PresetVacation
	case legacySetpointParty:
		return resource.PresetParty
	default:
		return ""
	}
}

// legacyGroupID is the id of the single synthetic group that owns every
// legacy thermostat.
const legacyGroupID = 0

func decodeLegacyThermostats(body []byte) (legacyThermostatStatus, error) {
	var status legacyThermostatStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return status, fmt.Errorf("decode thermostat status: %w", err)
	}
	sort.Slice(status.Status, func(i, j int) bool { return status.Status[i].ID < status.Status[j].ID })
	return status, nil
}

func legacyThermostatGroups(body []byte) ([]resource.ThermostatGroup, error) {
	status, err := decodeLegacyThermostats(body)
	if err != nil {
		return nil, err
	}
	if len(status.Status) == 0 {
		return []resource.ThermostatGroup{}, nil
	}

	group := resource.ThermostatGroup{
		Base: resource.Base{
			ID:           legacyGroupID,
			LocalID:      legacyGroupID,
			Capabilities: []string{resource.CapabilityHeating},
		},
		ThermostatIDs: make([]int, 0, len(status.Status)),
		Status: resource.GroupStatus{
			Mode:  resource.ModeHeating,
			State: onOff(status.ThermostatsOn),
		},
	}
	if status.Cooling != nil {
		group.Capabilities = append(group.Capabilities, resource.CapabilityCooling)
		if *status.Cooling {
			group.Status.Mode = resource.ModeCooling
		}
	}
	for _, unit := range status.Status {
		group.ThermostatIDs = append(group.ThermostatIDs, unit.ID)
	}
	return []resource.ThermostatGroup{group}, nil
}

func legacyThermostatUnits(body []byte) ([]resource.ThermostatUnit, error) {
	status, err := decodeLegacyThermostats(body)
	if err != nil {
		return nil, err
	}

	mode := resource.ModeHeating
	if status.Cooling != nil && *status.Cooling {
		mode = resource.ModeCooling
	}

	out := make([]resource.ThermostatUnit, 0, len(status.Status))
	for _, unit := range status.Status {
		out = append(out, resource.ThermostatUnit{
			Base: resource.Base{ID: unit.ID, LocalID: unit.ID, Name: unit.Name},
			Status: resource.UnitStatus{
				State:              onOff(status.ThermostatsOn),
				Mode:               mode,
				Preset:             status.preset(),
				CurrentTemperature: unit.Act,
				Setpoint:           unit.Csetp,
			},
		})
	}
	return out, nil
}

type legacyGroupActionConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func legacyGroupActions(body []byte) ([]resource.GroupAction, error) {
	var configs legacyConfigReply[legacyGroupActionConfig]
	if err := json.Unmarshal(body, &configs); err != nil {
		return nil, fmt.Errorf("decode group action configurations: %w", err)
	}
	out := make([]resource.GroupAction, 0, len(configs.Config))
	for _, cfg := range configs.Config {
		out = append(out, resource.GroupAction{
			Base: resource.Base{ID: cfg.ID, LocalID: cfg.ID, Name: cfg.Name},
		})
	}
	return out, nil
}

func legacyLocation(floor, room *int) resource.Location {
	return resource.Location{FloorID: knownByte(floor), RoomID: knownByte(room)}
}

func knownByte(v *int) *int {
	if v == nil || *v == legacyUnset {
		return nil
	}
	value := *v
	return &value
}

func onOff(on bool) string {
	if on {
		return resource.ThermostatOn
	}
	return resource.ThermostatOff
}
