package resource

import (
	"encoding/json"
	"fmt"
)

// Operation is a command verb understood by the gateway clients.
type Operation string

const (
	OpTurnOn         Operation = "turn_on"
	OpTurnOff        Operation = "turn_off"
	OpToggle         Operation = "toggle"
	OpMoveUp         Operation = "move_up"
	OpMoveDown       Operation = "move_down"
	OpStop           Operation = "stop"
	OpChangePosition Operation = "change_position"
	OpSetState       Operation = "set_state"
	OpSetTemperature Operation = "set_temperature"
	OpSetPreset      Operation = "set_preset"
	OpSetMode        Operation = "set_mode"
	OpTrigger        Operation = "trigger"
)

// Command addresses one resource. Number carries numeric arguments
// (dim level, vendor position, temperature); Text carries enum arguments
// (state, preset, mode).
type Command struct {
	Kind   Kind      `json:"kind"`
	ID     int       `json:"id"`
	Op     Operation `json:"op"`
	Number *float64  `json:"number,omitempty"`
	Text   string    `json:"text,omitempty"`
}

func (c Command) String() string {
	switch {
	case c.Number != nil:
		return fmt.Sprintf("%s/%d %s %v", c.Kind, c.ID, c.Op, *c.Number)
	case c.Text != "":
		return fmt.Sprintf("%s/%d %s %s", c.Kind, c.ID, c.Op, c.Text)
	default:
		return fmt.Sprintf("%s/%d %s", c.Kind, c.ID, c.Op)
	}
}

// Result is the gateway's answer to a command. Success is false when the
// vendor reported an error or the answer could not be interpreted.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Number is a convenience for building command arguments.
func Number(v float64) *float64 {
	return &v
}
