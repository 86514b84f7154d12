package entity

import (
	"context"
	"fmt"

	"github.com/joshp123/omhome/internal/resource"
)

// Color modes.
const (
	ColorModeOnOff      = "onoff"
	ColorModeBrightness = "brightness"
	ColorModeColorTemp  = "color_temp"
	ColorModeHS         = "hs"
	ColorModeRGBW       = "rgbw"
)

func colorModes(base resource.Base) []string {
	var modes []string
	if base.Has(resource.CapabilityRange) {
		modes = append(modes, ColorModeBrightness)
	}
	if base.Has(resource.CapabilityWhiteTemp) {
		modes = append(modes, ColorModeColorTemp, ColorModeHS)
	}
	if base.Has(resource.CapabilityFullColor) {
		modes = append(modes, ColorModeRGBW)
	}
	if len(modes) == 0 {
		modes = []string{ColorModeOnOff}
	}
	return modes
}

func lightState(state *State, snap *resource.Snapshot) {
	var (
		base  resource.Base
		on    bool
		value int
	)
	switch state.Kind {
	case resource.KindOutput:
		o, ok := snap.Output(state.ID)
		if !ok {
			return
		}
		base, on, value = o.Base, o.Status.On, o.Status.Value
	case resource.KindLight:
		l, ok := snap.Light(state.ID)
		if !ok {
			return
		}
		base, on, value = l.Base, l.Status.On, l.Status.Value
	default:
		return
	}

	state.Available = true
	state.On = boolPtr(on)
	state.ColorModes = colorModes(base)
	state.ColorMode = state.ColorModes[0]
	if base.Has(resource.CapabilityRange) {
		state.Brightness = intPtr(resource.BrightnessFromPercentage(value))
	}
}

// TurnOnLight switches a light on. brightness is 0..255 and only sent to
// dimmable lights.
func (s *Service) TurnOnLight(ctx context.Context, key string, brightness *int) error {
	d, base, err := s.lightTarget(key)
	if err != nil {
		return err
	}

	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpTurnOn}
	level := -1
	if brightness != nil && base.Has(resource.CapabilityRange) {
		if *brightness < 0 || *brightness > 255 {
			return fmt.Errorf("brightness %d: %w", *brightness, ErrInvalidValue)
		}
		level = resource.BrightnessToPercentage(*brightness)
		cmd.Number = resource.Number(float64(level))
	}
	return s.execute(ctx, cmd, setOn(d, true, level))
}

func (s *Service) TurnOffLight(ctx context.Context, key string) error {
	d, _, err := s.lightTarget(key)
	if err != nil {
		return err
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpTurnOff}
	return s.execute(ctx, cmd, setOn(d, false, -1))
}

func (s *Service) lightTarget(key string) (Descriptor, resource.Base, error) {
	d, err := s.target(key, PlatformLight)
	if err != nil {
		return d, resource.Base{}, err
	}
	snap := s.source.Data()
	if d.Kind == resource.KindLight {
		l, ok := snap.Light(d.ID)
		if !ok {
			return d, resource.Base{}, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return d, l.Base, nil
	}
	o, ok := snap.Output(d.ID)
	if !ok {
		return d, resource.Base{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return d, o.Base, nil
}

// setOn patches the on flag of an output or light. A negative level leaves
// the dim level untouched.
func setOn(d Descriptor, on bool, level int) func(*resource.Snapshot) bool {
	return func(snap *resource.Snapshot) bool {
		if d.Kind == resource.KindLight {
			return snap.PatchLight(d.ID, func(l *resource.Light) {
				l.Status.On = on
				if level >= 0 {
					l.Status.Value = level
				}
			})
		}
		return snap.PatchOutput(d.ID, func(o *resource.Output) {
			o.Status.On = on
			if level >= 0 {
				o.Status.Value = level
			}
		})
	}
}
