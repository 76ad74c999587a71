package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"axonsim/pkg/axonsim"
)

// loadRunRequestFromConfig reads a run config JSON file. Inputs are either
// plain values, one lane each, or objects with lane, value and t0 keys.
func loadRunRequestFromConfig(path string) (axonsim.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return axonsim.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return axonsim.RunRequest{}, err
	}

	var req axonsim.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["circuit"]); ok {
		req.Circuit = v
	}
	if v, ok := asInt(raw["circuit_size"]); ok {
		req.CircuitSize = v
	}
	if v, ok := asString(raw["engine"]); ok {
		req.Engine = v
	}
	if v, ok := asFloat64(raw["dt"]); ok {
		req.DT = v
	}
	if v, ok := asFloat64(raw["duration"]); ok {
		req.Duration = v
	}
	if v, ok := asFloat64(raw["horizon"]); ok {
		req.Horizon = v
	}
	if v, ok := asInt(raw["max_events"]); ok {
		req.MaxEvents = v
	}
	if v, ok := asFloat64(raw["tmin"]); ok {
		req.Tmin = v
	}
	if v, ok := asFloat64(raw["tcod"]); ok {
		req.Tcod = v
	}
	if v, ok := asFloat64(raw["recall_at"]); ok {
		req.RecallAt = &v
	}
	if v, ok := asBool(raw["no_recall"]); ok {
		req.NoRecall = v
	}

	if items, ok := raw["inputs"].([]any); ok {
		for i, item := range items {
			in, err := asInput(item, i)
			if err != nil {
				return axonsim.RunRequest{}, fmt.Errorf("inputs[%d]: %w", i, err)
			}
			req.Inputs = append(req.Inputs, in)
		}
	}

	return req, nil
}

func asInput(v any, lane int) (axonsim.Input, error) {
	if value, ok := asFloat64(v); ok {
		return axonsim.Input{Lane: lane, Value: value}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return axonsim.Input{}, fmt.Errorf("expected number or object, got %T", v)
	}
	in := axonsim.Input{Lane: lane}
	value, ok := asFloat64(m["value"])
	if !ok {
		return axonsim.Input{}, errors.New("missing value")
	}
	in.Value = value
	if l, ok := asInt(m["lane"]); ok {
		in.Lane = l
	}
	if t0, ok := asFloat64(m["t0"]); ok {
		in.T0 = t0
	}
	return in, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags the user set explicitly.
func overrideFromFlags(req *axonsim.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "circuit":
			req.Circuit = v.(string)
		case "size":
			req.CircuitSize = v.(int)
		case "engine":
			req.Engine = v.(string)
		case "dt":
			req.DT = v.(float64)
		case "duration":
			req.Duration = v.(float64)
		case "horizon":
			req.Horizon = v.(float64)
		case "max-events":
			req.MaxEvents = v.(int)
		case "tmin":
			req.Tmin = v.(float64)
		case "tcod":
			req.Tcod = v.(float64)
		case "recall-at":
			at := v.(float64)
			req.RecallAt = &at
		case "input":
			req.Inputs = v.([]axonsim.Input)
		}
	}
}

func loadOrDefaultRunRequest(configPath string) (axonsim.RunRequest, error) {
	if configPath == "" {
		return axonsim.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return axonsim.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
