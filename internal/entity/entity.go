// Package entity turns the coordinator snapshot into platform entities
// (lights, switches, covers, climate, sensors, scenes) and applies commands
// with optimistic updates.
package entity

import (
	"fmt"
	"strconv"

	"github.com/joshp123/omhome/internal/resource"
)

type Platform string

const (
	PlatformLight   Platform = "light"
	PlatformSwitch  Platform = "switch"
	PlatformCover   Platform = "cover"
	PlatformClimate Platform = "climate"
	PlatformSensor  Platform = "sensor"
	PlatformScene   Platform = "scene"
)

// Platforms lists every platform in the order entities are built.
func Platforms() []Platform {
	return []Platform{PlatformLight, PlatformSwitch, PlatformCover, PlatformClimate, PlatformSensor, PlatformScene}
}

const (
	Manufacturer = "OpenMotics"

	unknownLocation = "N/A"
	outputTypeLight = "LIGHT"
)

// Descriptor identifies one entity. Key is unique within an installation and
// is used to address the entity; UniqueID follows the installation-id scheme
// and may repeat across kinds.
type Descriptor struct {
	Key          string        `json:"key"`
	UniqueID     string        `json:"unique_id"`
	Name         string        `json:"name"`
	Platform     Platform      `json:"platform"`
	Kind         resource.Kind `json:"kind"`
	ID           int           `json:"id"`
	Quantity     string        `json:"quantity,omitempty"`
	Group        string        `json:"group,omitempty"`
	GroupID      *int          `json:"group_id,omitempty"`
	FloorID      string        `json:"floor_id"`
	RoomID       string        `json:"room_id"`
	Manufacturer string        `json:"manufacturer"`
}

// Build lists the entities a snapshot provides, applying the naming policy.
func Build(snap *resource.Snapshot, installKey string) []Descriptor {
	if snap == nil {
		return nil
	}
	var out []Descriptor

	for _, o := range snap.Outputs {
		if !resource.IsProvisioned(o.Name) {
			continue
		}
		platform := PlatformSwitch
		if o.OutputType == outputTypeLight {
			platform = PlatformLight
		}
		out = append(out, describe(installKey, resource.KindOutput, platform, o.Base, ""))
	}
	for _, l := range snap.Lights {
		if resource.IsProvisioned(l.Name) {
			out = append(out, describe(installKey, resource.KindLight, PlatformLight, l.Base, ""))
		}
	}
	for _, s := range snap.Shutters {
		if resource.IsProvisioned(s.Name) {
			out = append(out, describe(installKey, resource.KindShutter, PlatformCover, s.Base, ""))
		}
	}

	claimed := make(map[int]bool)
	for index, group := range snap.ThermostatGroups {
		groupName, ok := resource.GroupName(group, index, snap.ThermostatUnits)
		if !ok {
			continue
		}
		for _, unit := range resource.MemberUnits(group, snap.ThermostatUnits) {
			if claimed[unit.ID] {
				continue
			}
			claimed[unit.ID] = true
			d := describe(installKey, resource.KindThermostatUnit, PlatformClimate, unit.Base, "")
			groupID := group.ID
			d.Group = groupName
			d.GroupID = &groupID
			out = append(out, d)
		}
	}

	for _, s := range snap.Sensors {
		if !resource.IsProvisioned(s.Name) {
			continue
		}
		if s.PhysicalQuantity != "" {
			d := describe(installKey, resource.KindSensor, PlatformSensor, s.Base, "")
			d.Quantity = s.PhysicalQuantity
			out = append(out, d)
			continue
		}
		for _, q := range s.Quantities() {
			out = append(out, describe(installKey, resource.KindSensor, PlatformSensor, s.Base, q))
		}
	}
	for _, e := range snap.EnergySensors {
		if !resource.IsProvisioned(e.Name) {
			continue
		}
		for _, q := range energyQuantities {
			out = append(out, describe(installKey, resource.KindEnergySensor, PlatformSensor, e.Base, q))
		}
	}
	for _, a := range snap.GroupActions {
		if resource.IsProvisioned(a.Name) {
			out = append(out, describe(installKey, resource.KindGroupAction, PlatformScene, a.Base, ""))
		}
	}
	return out
}

func describe(installKey string, kind resource.Kind, platform Platform, base resource.Base, quantity string) Descriptor {
	d := Descriptor{
		Key:          fmt.Sprintf("%s-%d", kind, base.ID),
		UniqueID:     fmt.Sprintf("%s-%d", installKey, base.ID),
		Name:         base.Name,
		Platform:     platform,
		Kind:         kind,
		ID:           base.ID,
		Quantity:     quantity,
		FloorID:      locationID(base.Location.FloorID),
		RoomID:       locationID(base.Location.RoomID),
		Manufacturer: Manufacturer,
	}
	if quantity != "" {
		d.Key += "-" + quantity
		d.UniqueID += "-" + quantity
	}
	return d
}

func locationID(id *int) string {
	if id == nil {
		return unknownLocation
	}
	return strconv.Itoa(*id)
}
