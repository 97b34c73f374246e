package function

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
)

// ParamType is the declared type of a strategy parameter.
type ParamType string

const (
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeString ParamType = "string"
)

// ParamSpec declares one strategy parameter: its type, default and valid
// range. The registry exposes specs so a configuration front end can render
// controls and reject bad input before generation.
type ParamSpec struct {
	Name    string    `json:"name"`
	Type    ParamType `json:"type"`
	Default any       `json:"default"`
	Min     *float64  `json:"min,omitempty"`
	Max     *float64  `json:"max,omitempty"`
	Choices []string  `json:"choices,omitempty"`
	Help    string    `json:"help,omitempty"`
}

func bound(v float64) *float64 {
	return &v
}

// Params holds validated, typed parameter values keyed by name.
type Params map[string]any

// Int returns an int parameter.
func (p Params) Int(name string) int64 {
	v, _ := p[name].(int64)
	return v
}

// Float returns a float parameter.
func (p Params) Float(name string) float64 {
	v, _ := p[name].(float64)
	return v
}

// Str returns a string parameter.
func (p Params) Str(name string) string {
	v, _ := p[name].(string)
	return v
}

// Keys returns parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveParams checks kwargs against specs, fills defaults and converts
// every value to its declared Go type (int64, float64 or string).
// Unknown keys, mistyped values and out-of-range values are rejected.
func resolveParams(function string, specs []ParamSpec, kwargs map[string]any) (Params, error) {
	known := make(map[string]ParamSpec, len(specs))
	for _, s := range specs {
		known[s.Name] = s
	}

	unknown := make([]string, 0)
	for k := range kwargs {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, paramErrorf(function, unknown[0], "unknown parameter")
	}

	out := make(Params, len(specs))
	for _, spec := range specs {
		raw, ok := kwargs[spec.Name]
		if !ok || raw == nil {
			raw = spec.Default
		}
		v, err := coerce(spec, raw)
		if err != nil {
			return nil, paramErrorf(function, spec.Name, "%v", err)
		}
		if err := checkRange(spec, v); err != nil {
			return nil, paramErrorf(function, spec.Name, "%v", err)
		}
		out[spec.Name] = v
	}
	return out, nil
}

func coerce(spec ParamSpec, raw any) (any, error) {
	switch spec.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", raw)
		}
		return s, nil
	case TypeInt:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return int64(f), nil
	case TypeFloat:
		return toFloat(raw)
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", spec.Type)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("expected finite number, got %v", v)
		}
		return v, nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", raw)
	}
}

func checkRange(spec ParamSpec, v any) error {
	if len(spec.Choices) > 0 {
		s, _ := v.(string)
		if !slices.Contains(spec.Choices, s) {
			return fmt.Errorf("must be one of %v, got %q", spec.Choices, s)
		}
		return nil
	}

	var f float64
	switch n := v.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return nil
	}
	if spec.Min != nil && f < *spec.Min {
		return fmt.Errorf("must be >= %v, got %v", *spec.Min, f)
	}
	if spec.Max != nil && f > *spec.Max {
		return fmt.Errorf("must be <= %v, got %v", *spec.Max, f)
	}
	return nil
}
