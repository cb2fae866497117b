package request

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/swagger2har/internal/spec"
)

// orderedObject is a mapping whose keys encode in a fixed order.
type orderedObject struct {
	keys   []string
	values []any
}

// Ordered returns v with every mapping replaced by one that encodes its
// keys in the declaration order of schema, as JSON or YAML. Keys the schema
// does not declare follow, sorted.
func Ordered(v any, schema *spec.Schema) any {
	if m, ok := asMap(v); ok {
		keys := orderedKeys(m, schema)
		out := orderedObject{keys: keys, values: make([]any, len(keys))}
		for i, k := range keys {
			out.values[i] = Ordered(m[k], propertySchema(schema, k))
		}
		return out
	}
	if list, ok := v.([]any); ok {
		items := itemSchema(schema)
		out := make([]any, len(list))
		for i, e := range list {
			out[i] = Ordered(e, items)
		}
		return out
	}
	return v
}

// EncodeJSON encodes v without HTML escaping, keeping the property order
// of schema. indent "" yields compact output.
func EncodeJSON(v any, schema *spec.Schema, indent string) ([]byte, error) {
	return marshalJSON(Ordered(v, schema), indent)
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalJSON(k, "")
		if err != nil {
			return nil, err
		}
		val, err := marshalJSON(o.values[i], "")
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o orderedObject) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, k := range o.keys {
		var val yaml.Node
		if err := val.Encode(o.values[i]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
	}
	return node, nil
}
