package openmotics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joshp123/omhome/internal/resource"
)

// decodeList accepts the v1.1 envelope {"data": [...]} or a bare list.
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []T{}, nil
	}

	raw := json.RawMessage(trimmed)
	if trimmed[0] == '{' {
		var envelope struct {
			Data  json.RawMessage `json:"data"`
			Error string          `json:"_error"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		if envelope.Error != "" {
			return nil, &APIError{Op: "list", Message: envelope.Error}
		}
		if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
			return []T{}, nil
		}
		raw = envelope.Data
	}

	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// cloudOutput carries the vendor "type" key next to the typed record.
type cloudOutput struct {
	resource.Output
	Type string `json:"type"`
}

func decodeOutputs(body []byte) ([]resource.Output, error) {
	items, err := decodeList[cloudOutput](body)
	if err != nil {
		return nil, err
	}
	out := make([]resource.Output, 0, len(items))
	for _, item := range items {
		record := item.Output
		if record.OutputType == "" {
			record.OutputType = strings.ToUpper(item.Type)
		}
		out = append(out, record)
	}
	return out, nil
}

// cloudUnit accepts the alternative status keys some firmware versions use.
type cloudUnit struct {
	resource.ThermostatUnit
	Status struct {
		resource.UnitStatus
		ActualTemperature *float64 `json:"actual_temperature"`
		CurrentSetpoint   *float64 `json:"current_setpoint"`
	} `json:"status"`
}

func decodeUnits(body []byte) ([]resource.ThermostatUnit, error) {
	items, err := decodeList[cloudUnit](body)
	if err != nil {
		return nil, err
	}
	out := make([]resource.ThermostatUnit, 0, len(items))
	for _, item := range items {
		record := item.ThermostatUnit
		record.Status = item.Status.UnitStatus
		if record.Status.CurrentTemperature == nil {
			record.Status.CurrentTemperature = item.Status.ActualTemperature
		}
		if record.Status.Setpoint == nil {
			record.Status.Setpoint = item.Status.CurrentSetpoint
		}
		out = append(out, record)
	}
	return out, nil
}

// ParseResult interprets a command response. An empty body counts as success.
func ParseResult(op string, body []byte) (resource.Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return resource.Result{Success: true}, nil
	}

	var reply struct {
		Success *bool  `json:"success"`
		Error   string `json:"_error"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(trimmed, &reply); err != nil {
		if json.Valid(trimmed) {
			// Lists and scalars carry no failure marker.
			return resource.Result{Success: true, Raw: json.RawMessage(trimmed)}, nil
		}
		return resource.Result{Raw: json.RawMessage(trimmed)}, &APIError{Op: op, Message: "unparseable response"}
	}

	result := resource.Result{Success: true, Raw: json.RawMessage(trimmed)}
	switch {
	case reply.Error != "":
		result.Success = false
		result.Error = reply.Error
	case reply.Success != nil && !*reply.Success:
		result.Success = false
		result.Error = reply.Msg
		if result.Error == "" {
			result.Error = "request reported success=false"
		}
	}
	if !result.Success {
		return result, &APIError{Op: op, Message: result.Error}
	}
	return result, nil
}
