package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/mark3labs/swagger2har/internal/spec"
)

// formatScalar renders a value as it appears inside a parameter, form field
// or text body. Structured values fall back to compact JSON.
func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	data, err := marshalJSON(v, "")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// marshalJSON encodes v without HTML escaping. indent "" yields compact
// output.
func marshalJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// asList reports whether v is a sequence and returns its elements.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asMap reports whether v is a mapping with string keys.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

// orderedKeys lists the keys of m following the property order of schema,
// then the remaining keys sorted.
func orderedKeys(m map[string]any, schema *spec.Schema) []string {
	var declared []string
	if node, err := schema.Resolve(); err == nil && node != nil {
		declared = node.PropertyNames()
	}
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range declared {
		if _, ok := m[k]; ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	rest := make([]string, 0, len(m)-len(out))
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// propertySchema returns the schema of a named property, if any.
func propertySchema(schema *spec.Schema, name string) *spec.Schema {
	node, err := schema.Resolve()
	if err != nil || node == nil {
		return nil
	}
	return node.Properties[name]
}

// itemSchema returns the item schema of an array schema, if any.
func itemSchema(schema *spec.Schema) *spec.Schema {
	node, err := schema.Resolve()
	if err != nil || node == nil {
		return nil
	}
	return node.Items
}
