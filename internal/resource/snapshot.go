package resource

import (
	"errors"
	"fmt"
	"time"
)

// Snapshot is the result of one refresh cycle. A published snapshot is never
// mutated; patches operate on a Clone.
type Snapshot struct {
	FetchedAt        time.Time         `json:"fetched_at"`
	Outputs          []Output          `json:"outputs"`
	Lights           []Light           `json:"lights"`
	Shutters         []Shutter         `json:"shutters"`
	Sensors          []Sensor          `json:"sensors"`
	EnergySensors    []EnergySensor    `json:"energysensors"`
	ThermostatGroups []ThermostatGroup `json:"thermostatgroups"`
	ThermostatUnits  []ThermostatUnit  `json:"thermostatunits"`
	GroupActions     []GroupAction     `json:"groupactions"`
}

// EmptySnapshot returns a snapshot with an empty, non-nil list for every kind.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Outputs:          []Output{},
		Lights:           []Light{},
		Shutters:         []Shutter{},
		Sensors:          []Sensor{},
		EnergySensors:    []EnergySensor{},
		ThermostatGroups: []ThermostatGroup{},
		ThermostatUnits:  []ThermostatUnit{},
		GroupActions:     []GroupAction{},
	}
}

// Clone copies every kind's slice so records can be patched without touching
// the original. Pointer fields inside statuses are shared; patches replace
// them instead of writing through them.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return EmptySnapshot()
	}
	return &Snapshot{
		FetchedAt:        s.FetchedAt,
		Outputs:          cloneSlice(s.Outputs),
		Lights:           cloneSlice(s.Lights),
		Shutters:         cloneSlice(s.Shutters),
		Sensors:          cloneSlice(s.Sensors),
		EnergySensors:    cloneSlice(s.EnergySensors),
		ThermostatGroups: cloneSlice(s.ThermostatGroups),
		ThermostatUnits:  cloneSlice(s.ThermostatUnits),
		GroupActions:     cloneSlice(s.GroupActions),
	}
}

// CopyKind replaces dst's entry for kind with src's entry.
func CopyKind(dst, src *Snapshot, kind Kind) {
	if dst == nil || src == nil {
		return
	}
	switch kind {
	case KindOutput:
		dst.Outputs = src.Outputs
	case KindLight:
		dst.Lights = src.Lights
	case KindShutter:
		dst.Shutters = src.Shutters
	case KindSensor:
		dst.Sensors = src.Sensors
	case KindEnergySensor:
		dst.EnergySensors = src.EnergySensors
	case KindThermostatGroup:
		dst.ThermostatGroups = src.ThermostatGroups
	case KindThermostatUnit:
		dst.ThermostatUnits = src.ThermostatUnits
	case KindGroupAction:
		dst.GroupActions = src.GroupActions
	}
}

// Count returns the number of records of a kind.
func (s *Snapshot) Count(kind Kind) int {
	if s == nil {
		return 0
	}
	switch kind {
	case KindOutput:
		return len(s.Outputs)
	case KindLight:
		return len(s.Lights)
	case KindShutter:
		return len(s.Shutters)
	case KindSensor:
		return len(s.Sensors)
	case KindEnergySensor:
		return len(s.EnergySensors)
	case KindThermostatGroup:
		return len(s.ThermostatGroups)
	case KindThermostatUnit:
		return len(s.ThermostatUnits)
	case KindGroupAction:
		return len(s.GroupActions)
	default:
		return 0
	}
}

func (s *Snapshot) Output(id int) (Output, bool) { return find(s.outputs(), id) }

func (s *Snapshot) Light(id int) (Light, bool) { return find(s.lights(), id) }

func (s *Snapshot) Shutter(id int) (Shutter, bool) { return find(s.shutters(), id) }

func (s *Snapshot) Sensor(id int) (Sensor, bool) { return find(s.sensors(), id) }

func (s *Snapshot) EnergySensor(id int) (EnergySensor, bool) { return find(s.energySensors(), id) }

func (s *Snapshot) ThermostatGroup(id int) (ThermostatGroup, bool) { return find(s.groups(), id) }

func (s *Snapshot) ThermostatUnit(id int) (ThermostatUnit, bool) { return find(s.units(), id) }

func (s *Snapshot) GroupAction(id int) (GroupAction, bool) { return find(s.groupActions(), id) }

func (s *Snapshot) PatchOutput(id int, fn func(*Output)) bool {
	return patch(s.Outputs, id, fn)
}

func (s *Snapshot) PatchLight(id int, fn func(*Light)) bool {
	return patch(s.Lights, id, fn)
}

func (s *Snapshot) PatchShutter(id int, fn func(*Shutter)) bool {
	return patch(s.Shutters, id, fn)
}

func (s *Snapshot) PatchThermostatUnit(id int, fn func(*ThermostatUnit)) bool {
	return patch(s.ThermostatUnits, id, fn)
}

func (s *Snapshot) PatchThermostatGroup(id int, fn func(*ThermostatGroup)) bool {
	return patch(s.ThermostatGroups, id, fn)
}

// ErrDuplicateID is returned when a list holds the same id twice.
var ErrDuplicateID = errors.New("duplicate id")

// Validate reports duplicate ids within a kind.
func (s *Snapshot) Validate() error {
	for _, kind := range AllKinds() {
		if err := s.ValidateKind(kind); err != nil {
			return err
		}
	}
	return nil
}

// ValidateKind reports duplicate ids within one kind.
func (s *Snapshot) ValidateKind(kind Kind) error {
	if s == nil {
		return nil
	}
	var list []int
	switch kind {
	case KindOutput:
		list = ids(s.Outputs)
	case KindLight:
		list = ids(s.Lights)
	case KindShutter:
		list = ids(s.Shutters)
	case KindSensor:
		list = ids(s.Sensors)
	case KindEnergySensor:
		list = ids(s.EnergySensors)
	case KindThermostatGroup:
		list = ids(s.ThermostatGroups)
	case KindThermostatUnit:
		list = ids(s.ThermostatUnits)
	case KindGroupAction:
		list = ids(s.GroupActions)
	}
	seen := make(map[int]bool, len(list))
	for _, id := range list {
		if seen[id] {
			return fmt.Errorf("%s: %w %d", kind, ErrDuplicateID, id)
		}
		seen[id] = true
	}
	return nil
}

func (s *Snapshot) outputs() []Output {
	if s == nil {
		return nil
	}
	return s.Outputs
}

func (s *Snapshot) lights() []Light {
	if s == nil {
		return nil
	}
	return s.Lights
}

func (s *Snapshot) shutters() []Shutter {
	if s == nil {
		return nil
	}
	return s.Shutters
}

func (s *Snapshot) sensors() []Sensor {
	if s == nil {
		return nil
	}
	return s.Sensors
}

func (s *Snapshot) energySensors() []EnergySensor {
	if s == nil {
		return nil
	}
	return s.EnergySensors
}

func (s *Snapshot) groups() []ThermostatGroup {
	if s == nil {
		return nil
	}
	return s.ThermostatGroups
}

func (s *Snapshot) units() []ThermostatUnit {
	if s == nil {
		return nil
	}
	return s.ThermostatUnits
}

func (s *Snapshot) groupActions() []GroupAction {
	if s == nil {
		return nil
	}
	return s.GroupActions
}

type record interface {
	RecordID() int
}

func find[T record](items []T, id int) (T, bool) {
	for _, item := range items {
		if item.RecordID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func patch[T record](items []T, id int, fn func(*T)) bool {
	for i := range items {
		if items[i].RecordID() == id {
			fn(&items[i])
			return true
		}
	}
	return false
}

func ids[T record](items []T) []int {
	out := make([]int, 0, len(items))
	for _, item := range items {
		out = append(out, item.RecordID())
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
