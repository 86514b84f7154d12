package resource

// Kind identifies one of the resource collections exposed by a gateway.
type Kind string

const (
	KindOutput          Kind = "outputs"
	KindLight           Kind = "lights"
	KindShutter         Kind = "shutters"
	KindSensor          Kind = "sensors"
	KindEnergySensor    Kind = "energysensors"
	KindThermostatGroup Kind = "thermostatgroups"
	KindThermostatUnit  Kind = "thermostatunits"
	KindGroupAction     Kind = "groupactions"
)

// AllKinds returns every resource kind in refresh order.
func AllKinds() []Kind {
	return []Kind{
		KindOutput,
		KindLight,
		KindShutter,
		KindSensor,
		KindEnergySensor,
		KindThermostatGroup,
		KindThermostatUnit,
		KindGroupAction,
	}
}

func (k Kind) Valid() bool {
	for _, kind := range AllKinds() {
		if kind == k {
			return true
		}
	}
	return false
}

// Capability strings reported by the vendor.
const (
	CapabilityOnOff     = "ON_OFF"
	CapabilityRange     = "RANGE"
	CapabilityPosition  = "POSITION"
	CapabilityWhiteTemp = "WHITE_TEMP"
	CapabilityFullColor = "FULL_COLOR"
	CapabilityHeating   = "HEATING"
	CapabilityCooling   = "COOLING"
)

// Location places a resource inside the installation. Nil ids are unknown.
type Location struct {
	FloorID        *int `json:"floor_id,omitempty"`
	RoomID         *int `json:"room_id,omitempty"`
	InstallationID *int `json:"installation_id,omitempty"`
}

// Base holds the fields shared by every resource kind.
type Base struct {
	ID           int      `json:"id"`
	LocalID      int      `json:"local_id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
	Location     Location `json:"location"`
}

func (b Base) RecordID() int { return b.ID }

func (b Base) RecordName() string { return b.Name }

// Has reports whether the resource declares the capability.
func (b Base) Has(capability string) bool {
	for _, c := range b.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type OutputStatus struct {
	On     bool `json:"on"`
	Value  int  `json:"value"`
	Locked bool `json:"locked,omitempty"`
}

// Output is a relay or dimmer channel; OutputType tells lights from outlets.
type Output struct {
	Base
	OutputType string       `json:"output_type"`
	Status     OutputStatus `json:"status"`
}

type LightStatus struct {
	On    bool `json:"on"`
	Value int  `json:"value"`
}

type Light struct {
	Base
	Status LightStatus `json:"status"`
}

// Shutter states.
const (
	ShutterUp        = "UP"
	ShutterDown      = "DOWN"
	ShutterGoingUp   = "GOING_UP"
	ShutterGoingDown = "GOING_DOWN"
	ShutterStop      = "STOP"
)

// ShutterStatus uses the vendor convention: position 0 is open, 100 is closed.
type ShutterStatus struct {
	State    string `json:"state,omitempty"`
	Position *int   `json:"position,omitempty"`
	Locked   bool   `json:"locked,omitempty"`
}

type Shutter struct {
	Base
	Status ShutterStatus `json:"status"`
}

// Physical quantities reported by sensors.
const (
	QuantityTemperature = "temperature"
	QuantityHumidity    = "humidity"
	QuantityBrightness  = "brightness"
)

type SensorStatus struct {
	Value       *float64 `json:"value,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Brightness  *float64 `json:"brightness,omitempty"`
}

// Reading returns the value for a physical quantity, falling back to the
// generic value field.
func (s SensorStatus) Reading(quantity string) *float64 {
	var specific *float64
	switch quantity {
	case QuantityTemperature:
		specific = s.Temperature
	case QuantityHumidity:
		specific = s.Humidity
	case QuantityBrightness:
		specific = s.Brightness
	}
	if specific != nil {
		return specific
	}
	return s.Value
}

type Sensor struct {
	Base
	PhysicalQuantity string       `json:"physical_quantity,omitempty"`
	Status           SensorStatus `json:"status"`
}

// Quantities lists the physical quantities this sensor can report.
func (s Sensor) Quantities() []string {
	if s.PhysicalQuantity != "" {
		return []string{s.PhysicalQuantity}
	}
	var out []string
	if s.Status.Temperature != nil {
		out = append(out, QuantityTemperature)
	}
	if s.Status.Humidity != nil {
		out = append(out, QuantityHumidity)
	}
	if s.Status.Brightness != nil {
		out = append(out, QuantityBrightness)
	}
	return out
}

type EnergyStatus struct {
	Voltage   *float64 `json:"voltage,omitempty"`
	Current   *float64 `json:"current,omitempty"`
	Power     *float64 `json:"power,omitempty"`
	Frequency *float64 `json:"frequency,omitempty"`
}

type EnergySensor struct {
	Base
	Status EnergyStatus `json:"status"`
}

// Thermostat values.
const (
	ThermostatOn  = "ON"
	ThermostatOff = "OFF"

	ModeHeating = "HEATING"
	ModeCooling = "COOLING"

	PresetAuto     = "AUTO"
	PresetAway     = "AWAY"
	PresetParty    = "PARTY"
	PresetVacation = "VACATION"
)

type GroupStatus struct {
	Mode  string `json:"mode,omitempty"`
	State string `json:"state,omitempty"`
}

// ThermostatGroup owns member units by id.
type ThermostatGroup struct {
	Base
	ThermostatIDs []int       `json:"thermostat_ids"`
	Status        GroupStatus `json:"status"`
}

// HasMember reports whether the unit id is listed in the group.
func (g ThermostatGroup) HasMember(unitID int) bool {
	for _, id := range g.ThermostatIDs {
		if id == unitID {
			return true
		}
	}
	return false
}

type UnitStatus struct {
	State              string   `json:"state,omitempty"`
	Mode               string   `json:"mode,omitempty"`
	Preset             string   `json:"preset,omitempty"`
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	Setpoint           *float64 `json:"setpoint,omitempty"`
}

type ThermostatUnit struct {
	Base
	Status UnitStatus `json:"status"`
}

// GroupAction is a vendor macro, surfaced as a scene.
type GroupAction struct {
	Base
}

// Installation is one site reachable through a gateway connection.
type Installation struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	GatewayModel string `json:"gateway_model,omitempty"`
	Version      string `json:"version,omitempty"`
}
