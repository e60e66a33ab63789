package optimizer

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

// ResolveParameters checks in against the declared schema and fills declared
// defaults. Parameters the algorithm does not declare are rejected. An
// algorithm without a schema accepts anything.
func (d AlgorithmDescriptor) ResolveParameters(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in)+len(d.Parameters))
	for k, v := range in {
		out[k] = v
	}
	if len(d.Parameters) == 0 {
		return out, nil
	}

	unknown := make([]string, 0)
	for k := range in {
		if _, ok := d.Parameters[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s does not accept %v", ErrInvalidParameter, d.Label(), unknown)
	}

	names := make([]string, 0, len(d.Parameters))
	for name := range d.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := d.Parameters[name]
		v, ok := out[name]
		if !ok || v == nil {
			if spec.Default != nil {
				out[name] = spec.Default
				continue
			}
			if spec.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidParameter, name)
			}
			delete(out, name)
			continue
		}
		if err := spec.check(v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, name, err)
		}
	}
	return out, nil
}

func (p ParameterSpec) check(v any) error {
	switch p.Type {
	case ParamNumber, ParamInteger:
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("want %s, got %T", p.Type, v)
		}
		if p.Type == ParamInteger && f != math.Trunc(f) {
			return fmt.Errorf("want integer, got %v", f)
		}
		if p.Min != nil && f < *p.Min {
			return fmt.Errorf("%v below minimum %v", f, *p.Min)
		}
		if p.Max != nil && f > *p.Max {
			return fmt.Errorf("%v above maximum %v", f, *p.Max)
		}
	case ParamBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("want boolean, got %T", v)
		}
	case ParamString, ParamSelect:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		if len(p.Options) > 0 && !slices.Contains(p.Options, s) {
			return fmt.Errorf("%q not one of %v", s, p.Options)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
