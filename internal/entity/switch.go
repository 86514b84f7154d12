package entity

import (
	"context"

	"github.com/joshp123/omhome/internal/resource"
)

const switchOnValue = 100

func switchState(state *State, snap *resource.Snapshot) {
	o, ok := snap.Output(state.ID)
	if !ok {
		return
	}
	state.Available = true
	state.On = boolPtr(o.Status.On)
	state.Icon = switchIcon(o.OutputType, o.Status.On)
}

func switchIcon(outputType string, on bool) string {
	switch outputType {
	case "VALVE":
		if on {
			return "mdi:valve-open"
		}
		return "mdi:valve-closed"
	case "VENTILATION":
		if on {
			return "mdi:fan"
		}
		return "mdi:fan-off"
	}
	return ""
}

func (s *Service) TurnOnSwitch(ctx context.Context, key string) error {
	d, err := s.available(key, PlatformSwitch)
	if err != nil {
		return err
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpTurnOn, Number: resource.Number(switchOnValue)}
	return s.execute(ctx, cmd, setOn(d, true, -1))
}

func (s *Service) TurnOffSwitch(ctx context.Context, key string) error {
	d, err := s.available(key, PlatformSwitch)
	if err != nil {
		return err
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpTurnOff}
	return s.execute(ctx, cmd, setOn(d, false, -1))
}

// Toggle flips an output or light.
func (s *Service) Toggle(ctx context.Context, key string) error {
	d, err := s.target(key, "")
	if err != nil {
		return err
	}
	if d.Platform != PlatformSwitch && d.Platform != PlatformLight {
		return unsupported(d, "toggle")
	}

	state := StateOf(d, s.source.Data())
	if !state.Available {
		return notFound(key)
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpToggle}
	return s.execute(ctx, cmd, setOn(d, !*state.On, -1))
}
