package entity

import (
	"context"
	"fmt"

	"github.com/joshp123/omhome/internal/resource"
)

// HVAC modes, actions and presets as exposed to consumers.
const (
	HVACOff  = "off"
	HVACHeat = "heat"
	HVACCool = "cool"

	HVACActionHeating = "heating"
	HVACActionCooling = "cooling"
	HVACActionOff     = "off"

	PresetHome     = "home"
	PresetAway     = "away"
	PresetActivity = "activity"
	PresetEco      = "eco"

	MinTemperature = 6.0
	MaxTemperature = 32.0
)

var presets = []struct {
	vendor string
	name   string
}{
	{resource.PresetAuto, PresetHome},
	{resource.PresetAway, PresetAway},
	{resource.PresetParty, PresetActivity},
	{resource.PresetVacation, PresetEco},
}

func presetName(vendor string) string {
	for _, p := range presets {
		if p.vendor == vendor {
			return p.name
		}
	}
	return ""
}

func presetVendor(name string) (string, bool) {
	for _, p := range presets {
		if p.name == name {
			return p.vendor, true
		}
	}
	return "", false
}

func presetNames() []string {
	out := make([]string, 0, len(presets))
	for _, p := range presets {
		out = append(out, p.name)
	}
	return out
}

func hvacModes(group resource.ThermostatGroup) []string {
	modes := []string{HVACOff}
	if group.Has(resource.CapabilityHeating) {
		modes = append(modes, HVACHeat)
	}
	if group.Has(resource.CapabilityCooling) {
		modes = append(modes, HVACCool)
	}
	return modes
}

func hvacMode(unit resource.ThermostatUnit) string {
	if unit.Status.State == resource.ThermostatOff {
		return HVACOff
	}
	switch unit.Status.Mode {
	case resource.ModeHeating:
		return HVACHeat
	case resource.ModeCooling:
		return HVACCool
	}
	return HVACOff
}

func hvacAction(unit resource.ThermostatUnit) string {
	if unit.Status.State == resource.ThermostatOff {
		return HVACActionOff
	}
	switch unit.Status.Mode {
	case resource.ModeHeating:
		return HVACActionHeating
	case resource.ModeCooling:
		return HVACActionCooling
	}
	return ""
}

// climateRecords returns the unit and the group it resolves to.
func climateRecords(d Descriptor, snap *resource.Snapshot) (resource.ThermostatUnit, resource.ThermostatGroup, bool) {
	unit, ok := snap.ThermostatUnit(d.ID)
	if !ok {
		return unit, resource.ThermostatGroup{}, false
	}
	group, _, ok := resource.ResolveGroup(snap.ThermostatGroups, unit.ID)
	return unit, group, ok
}

func climateState(state *State, snap *resource.Snapshot) {
	unit, group, ok := climateRecords(state.Descriptor, snap)
	if !ok {
		return
	}
	state.Available = true
	state.Climate = &ClimateState{
		HVACMode:           hvacMode(unit),
		HVACModes:          hvacModes(group),
		HVACAction:         hvacAction(unit),
		Preset:             presetName(unit.Status.Preset),
		Presets:            presetNames(),
		CurrentTemperature: unit.Status.CurrentTemperature,
		TargetTemperature:  unit.Status.Setpoint,
		MinTemperature:     MinTemperature,
		MaxTemperature:     MaxTemperature,
		Unit:               "°C",
	}
}

func (s *Service) climateTarget(key string) (Descriptor, resource.ThermostatUnit, resource.ThermostatGroup, error) {
	d, err := s.target(key, PlatformClimate)
	if err != nil {
		return d, resource.ThermostatUnit{}, resource.ThermostatGroup{}, err
	}
	unit, group, ok := climateRecords(d, s.source.Data())
	if !ok {
		return d, unit, group, notFound(key)
	}
	return d, unit, group, nil
}

func (s *Service) SetTemperature(ctx context.Context, key string, temperature float64) error {
	d, _, _, err := s.climateTarget(key)
	if err != nil {
		return err
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		return fmt.Errorf("temperature %.1f outside %.0f..%.0f: %w", temperature, MinTemperature, MaxTemperature, ErrInvalidValue)
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpSetTemperature, Number: resource.Number(temperature)}
	return s.execute(ctx, cmd, patchUnit(d.ID, func(u *resource.ThermostatUnit) {
		u.Status.Setpoint = resource.Number(temperature)
	}))
}

func (s *Service) SetPreset(ctx context.Context, key, preset string) error {
	d, _, _, err := s.climateTarget(key)
	if err != nil {
		return err
	}
	vendor, ok := presetVendor(preset)
	if !ok {
		return fmt.Errorf("preset %q: %w", preset, ErrInvalidValue)
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpSetPreset, Text: vendor}
	return s.execute(ctx, cmd, patchUnit(d.ID, func(u *resource.ThermostatUnit) {
		u.Status.Preset = vendor
	}))
}

// SetHVACMode switches a unit off, or switches it on and sets the mode of the
// group it belongs to.
func (s *Service) SetHVACMode(ctx context.Context, key, mode string) error {
	d, unit, group, err := s.climateTarget(key)
	if err != nil {
		return err
	}

	if mode == HVACOff {
		return s.setUnitState(ctx, d, resource.ThermostatOff)
	}

	var vendorMode string
	switch mode {
	case HVACHeat:
		vendorMode = resource.ModeHeating
	case HVACCool:
		vendorMode = resource.ModeCooling
	default:
		return fmt.Errorf("hvac mode %q: %w", mode, ErrInvalidValue)
	}
	if !contains(hvacModes(group), mode) {
		return unsupported(d, "hvac mode "+mode)
	}

	if hvacMode(unit) == HVACOff {
		if err := s.setUnitState(ctx, d, resource.ThermostatOn); err != nil {
			return err
		}
	}

	cmd := resource.Command{Kind: resource.KindThermostatGroup, ID: group.ID, Op: resource.OpSetMode, Text: vendorMode}
	return s.execute(ctx, cmd, func(snap *resource.Snapshot) bool {
		found := snap.PatchThermostatGroup(group.ID, func(g *resource.ThermostatGroup) {
			g.Status.Mode = vendorMode
		})
		for _, id := range group.ThermostatIDs {
			snap.PatchThermostatUnit(id, func(u *resource.ThermostatUnit) {
				u.Status.Mode = vendorMode
			})
		}
		return found
	})
}

func (s *Service) setUnitState(ctx context.Context, d Descriptor, value string) error {
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpSetState, Text: value}
	return s.execute(ctx, cmd, patchUnit(d.ID, func(u *resource.ThermostatUnit) {
		u.Status.State = value
	}))
}

func patchUnit(id int, fn func(*resource.ThermostatUnit)) func(*resource.Snapshot) bool {
	return func(snap *resource.Snapshot) bool {
		return snap.PatchThermostatUnit(id, fn)
	}
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
