package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrightnessRoundTrip(t *testing.T) {
	for p := 0; p <= 100; p++ {
		got := BrightnessToPercentage(BrightnessFromPercentage(p))
		assert.InDelta(t, p, got, 1, "percentage %d", p)
	}
	for b := 0; b <= 255; b++ {
		got := BrightnessFromPercentage(BrightnessToPercentage(b))
		assert.InDelta(t, b, got, 1, "byte %d", b)
	}
}

func TestBrightnessClamps(t *testing.T) {
	assert.Equal(t, 50, BrightnessToPercentage(128))
	assert.Equal(t, 100, BrightnessToPercentage(300))
	assert.Equal(t, 0, BrightnessToPercentage(-5))
	assert.Equal(t, 255, BrightnessFromPercentage(150))
	assert.Equal(t, 0, BrightnessFromPercentage(-1))
}

func TestInvertPosition(t *testing.T) {
	for x := 0; x <= 100; x++ {
		assert.Equal(t, x, InvertPosition(InvertPosition(x)))
	}
	assert.Equal(t, 70, InvertPosition(30))
}

func TestIsProvisioned(t *testing.T) {
	assert.False(t, IsProvisioned(""))
	assert.False(t, IsProvisioned("   "))
	assert.False(t, IsProvisioned("NOT_IN_USE"))
	assert.False(t, IsProvisioned("not_in_use"))
	assert.True(t, IsProvisioned("Kitchen Light"))
}

func TestGroupMembership(t *testing.T) {
	groups := []ThermostatGroup{{Base: Base{ID: 1}, ThermostatIDs: []int{10, 11}}}
	units := []ThermostatUnit{
		{Base: Base{ID: 10, Name: "Living"}},
		{Base: Base{ID: 11, Name: "Kitchen"}},
		{Base: Base{ID: 12, Name: "Attic"}},
	}

	for _, id := range []int{10, 11} {
		group, index, ok := ResolveGroup(groups, id)
		require.True(t, ok)
		assert.Equal(t, 1, group.ID)
		assert.Equal(t, 0, index)
	}
	_, _, ok := ResolveGroup(groups, 12)
	assert.False(t, ok)

	name, ok := GroupName(groups[0], 0, units)
	require.True(t, ok)
	assert.Equal(t, "Thermostatgroup-0", name)
	assert.Len(t, MemberUnits(groups[0], units), 2)
}

func TestGroupWithoutNamedMembersIsSkipped(t *testing.T) {
	group := ThermostatGroup{Base: Base{ID: 2, Name: "Upstairs"}, ThermostatIDs: []int{20}}
	units := []ThermostatUnit{{Base: Base{ID: 20, Name: NotInUse}}}

	_, ok := GroupName(group, 3, units)
	assert.False(t, ok)
}

func TestClonePatchLeavesOriginal(t *testing.T) {
	position := 30
	original := EmptySnapshot()
	original.Lights = []Light{{Base: Base{ID: 5, Name: "Hall"}}}
	original.Shutters = []Shutter{{Base: Base{ID: 1}, Status: ShutterStatus{Position: &position}}}

	clone := original.Clone()
	require.True(t, clone.PatchLight(5, func(l *Light) {
		l.Status.On = true
		l.Status.Value = 50
	}))
	require.True(t, clone.PatchShutter(1, func(s *Shutter) {
		p := 0
		s.Status.Position = &p
	}))
	assert.False(t, clone.PatchLight(6, func(*Light) {}))

	light, _ := original.Light(5)
	assert.False(t, light.Status.On)
	shutter, _ := original.Shutter(1)
	assert.Equal(t, 30, *shutter.Status.Position)

	patched, _ := clone.Light(5)
	assert.Equal(t, 50, patched.Status.Value)
}

func TestValidateDuplicateIDs(t *testing.T) {
	snap := EmptySnapshot()
	snap.Outputs = []Output{{Base: Base{ID: 1}}, {Base: Base{ID: 1}}}
	assert.Error(t, snap.Validate())
	snap.Outputs = snap.Outputs[:1]
	assert.NoError(t, snap.Validate())
}

func TestValidateKindChecksOnlyThatKind(t *testing.T) {
	snap := EmptySnapshot()
	snap.Lights = []Light{{Base: Base{ID: 4}}, {Base: Base{ID: 4}}}

	err := snap.ValidateKind(KindLight)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.EqualError(t, err, "lights: duplicate id 4")
	assert.NoError(t, snap.ValidateKind(KindOutput))
}

func TestSensorQuantities(t *testing.T) {
	temp := 21.5
	hum := 40.0
	legacy := Sensor{Status: SensorStatus{Temperature: &temp, Humidity: &hum}}
	assert.Equal(t, []string{QuantityTemperature, QuantityHumidity}, legacy.Quantities())

	value := 12.0
	cloud := Sensor{PhysicalQuantity: QuantityBrightness, Status: SensorStatus{Value: &value}}
	assert.Equal(t, []string{QuantityBrightness}, cloud.Quantities())
	assert.Equal(t, 12.0, *cloud.Status.Reading(QuantityBrightness))
}
