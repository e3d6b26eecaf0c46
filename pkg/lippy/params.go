package lippy

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v2"
)

// Params holds the top-level model parameters: named scalars, lists and
// string-keyed maps that expressions reference by symbol. Values are
// normalized on construction so that lookups always yield one of
// int, float64, string, bool, []interface{} or map[string]interface{}.
type Params struct {
	root map[string]interface{}
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{root: map[string]interface{}{}}
}

// ParamsFromMap builds a parameter set from an in-memory map. Nested maps
// with non-string keys are rekeyed through their string rendering, and
// integral floats are narrowed to int so indices render without decimals.
func ParamsFromMap(m map[string]interface{}) *Params {
	root := make(map[string]interface{}, len(m))
	for k, v := range m {
		root[k] = normalizeValue(v)
	}
	return &Params{root: root}
}

// ParamsFromJSON parses a JSON object into a parameter set.
func ParamsFromJSON(data []byte) (*Params, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid parameter JSON")
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("parameter JSON must be an object, got %s", parsed.Type)
	}
	root := map[string]interface{}{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		root[key.String()] = fromJSONResult(value)
		return true
	})
	return &Params{root: root}, nil
}

// ParamsFromYAML parses a YAML mapping into a parameter set.
func ParamsFromYAML(data []byte) (*Params, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid parameter YAML: %w", err)
	}
	return ParamsFromMap(raw), nil
}

// Lookup returns the parameter bound to name.
func (p *Params) Lookup(name string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.root[name]
	return v, ok
}

// Len returns the number of top-level parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.root)
}

func fromJSONResult(r gjson.Result) interface{} {
	switch {
	case r.IsObject():
		out := map[string]interface{}{}
		r.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = fromJSONResult(value)
			return true
		})
		return out
	case r.IsArray():
		items := r.Array()
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			out = append(out, fromJSONResult(item))
		}
		return out
	case r.Type == gjson.Number:
		return narrowNumber(r.Num)
	case r.Type == gjson.String:
		return r.Str
	case r.Type == gjson.True:
		return true
	case r.Type == gjson.False:
		return false
	default:
		return nil
	}
}

// narrowNumber keeps integral values as int so they render identically to
// integer literals when used as variable indices.
func narrowNumber(f float64) interface{} {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1<<53 {
		return int(f)
	}
	return f
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = normalizeValue(item)
		}
		return out
	case map[interface{}]interface{}:
		// yaml.v2 produces interface-keyed maps.
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[fmt.Sprintf("%v", k)] = normalizeValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case float32:
		return narrowNumber(float64(t))
	case float64:
		return narrowNumber(t)
	case int8:
		return int(t)
	case int16:
		return int(t)
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint:
		return int(t)
	case uint8:
		return int(t)
	case uint16:
		return int(t)
	case uint32:
		return int(t)
	case uint64:
		return int(t)
	default:
		return v
	}
}
