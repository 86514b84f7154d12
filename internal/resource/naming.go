package resource

import (
	"fmt"
	"strings"
)

// NotInUse is the placeholder name of unprovisioned module slots.
const NotInUse = "NOT_IN_USE"

// IsProvisioned reports whether a resource name marks a slot that should be
// surfaced. Empty names and NOT_IN_USE (any case) are not.
func IsProvisioned(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	return !strings.EqualFold(trimmed, NotInUse)
}

// GroupName returns the display name of a thermostat group. Unnamed groups
// with at least one provisioned member present in units are named after their
// position; groups without such members return ok=false.
func GroupName(group ThermostatGroup, index int, units []ThermostatUnit) (string, bool) {
	if len(MemberUnits(group, units)) == 0 {
		return "", false
	}
	if IsProvisioned(group.Name) {
		return group.Name, true
	}
	return fmt.Sprintf("Thermostatgroup-%d", index), true
}

// MemberUnits returns the provisioned units listed in the group, in the
// group's member order.
func MemberUnits(group ThermostatGroup, units []ThermostatUnit) []ThermostatUnit {
	var out []ThermostatUnit
	for _, id := range group.ThermostatIDs {
		for _, unit := range units {
			if unit.ID != id || !IsProvisioned(unit.Name) {
				continue
			}
			out = append(out, unit)
		}
	}
	return out
}

// ResolveGroup finds the group that lists unitID as a member.
func ResolveGroup(groups []ThermostatGroup, unitID int) (ThermostatGroup, int, bool) {
	for i, group := range groups {
		if group.HasMember(unitID) {
			return group, i, true
		}
	}
	return ThermostatGroup{}, -1, false
}
