package spec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeSchema decodes a standalone JSON or YAML JSON-Schema document into a
// Schema graph. Local references ("#", "#/$defs/Node", ...) are resolved
// against the document root after decoding; each pointer maps to a single
// node, so recursive definitions come back as cycles. References that
// cannot be resolved are kept and reported by Schema.Resolve.
func DecodeSchema(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("decode schema: empty document")
	}
	root := deref(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decode schema: expected a mapping at the root, got %s", kindName(root.Kind))
	}
	d := newSchemaDecoder(root, nil)
	s := d.decode(root)
	d.resolveRefs()
	return s, nil
}

// schemaDecoder turns YAML nodes into Schema nodes. Nodes are memoized by
// identity so shared and recursive definitions stay shared.
type schemaDecoder struct {
	root *yaml.Node
	memo map[*yaml.Node]*Schema
	refs []*Schema
	// external resolves references that do not point into root.
	external func(ref string) *Schema
}

func newSchemaDecoder(root *yaml.Node, external func(string) *Schema) *schemaDecoder {
	return &schemaDecoder{
		root:     root,
		memo:     make(map[*yaml.Node]*Schema),
		external: external,
	}
}

func (d *schemaDecoder) decode(n *yaml.Node) *Schema {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		// Boolean schemas and malformed entries carry no shape.
		return nil
	}
	if s, ok := d.memo[n]; ok {
		return s
	}
	s := &Schema{}
	d.memo[n] = s

	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := deref(n.Content[i+1])
		switch key {
		case "$ref":
			s.Ref = val.Value
			d.refs = append(d.refs, s)
		case "type":
			s.Types = stringList(val)
		case "format":
			s.Format = val.Value
		case "pattern":
			s.Pattern = val.Value
		case "title":
			s.Title = val.Value
		case "description":
			s.Description = val.Value
		case "enum":
			if v, ok := nodeValue(val).([]any); ok {
				s.Enum = v
			}
		case "const":
			s.Const, s.HasConst = nodeValue(val), true
		case "default":
			s.Default, s.HasDefault = nodeValue(val), true
		case "example":
			s.Example, s.HasExample = nodeValue(val), true
		case "examples":
			if v, ok := nodeValue(val).([]any); ok {
				s.Examples = v
			}
		case "properties":
			if val.Kind != yaml.MappingNode {
				continue
			}
			s.Properties = make(map[string]*Schema, len(val.Content)/2)
			for j := 0; j+1 < len(val.Content); j += 2 {
				name := val.Content[j].Value
				s.Properties[name] = d.decode(val.Content[j+1])
				s.PropertyOrder = append(s.PropertyOrder, name)
			}
		case "required":
			s.Required = stringList(val)
		case "additionalProperties":
			s.AdditionalProperties = d.decode(val)
		case "items":
			if val.Kind == yaml.SequenceNode {
				s.PrefixItems = d.decodeList(val)
			} else {
				s.Items = d.decode(val)
			}
		case "prefixItems":
			s.PrefixItems = d.decodeList(val)
		case "allOf":
			s.AllOf = d.decodeList(val)
		case "oneOf":
			s.OneOf = d.decodeList(val)
		case "anyOf":
			s.AnyOf = d.decodeList(val)
		case "minimum":
			s.Minimum = floatPtr(val)
		case "maximum":
			s.Maximum = floatPtr(val)
		case "exclusiveMinimum":
			// 3.0 uses a boolean flag, 3.1 the bound itself.
			if f := floatPtr(val); f != nil {
				s.Minimum, s.ExclusiveMinimum = f, true
			} else {
				s.ExclusiveMinimum = boolValue(val)
			}
		case "exclusiveMaximum":
			if f := floatPtr(val); f != nil {
				s.Maximum, s.ExclusiveMaximum = f, true
			} else {
				s.ExclusiveMaximum = boolValue(val)
			}
		case "multipleOf":
			s.MultipleOf = floatPtr(val)
		case "minLength":
			s.MinLength = uintValue(val)
		case "maxLength":
			if val.Kind == yaml.ScalarNode {
				v := uintValue(val)
				s.MaxLength = &v
			}
		case "minItems":
			s.MinItems = uintValue(val)
		case "maxItems":
			if val.Kind == yaml.ScalarNode {
				v := uintValue(val)
				s.MaxItems = &v
			}
		case "nullable":
			s.Nullable = boolValue(val)
		case "readOnly":
			s.ReadOnly = boolValue(val)
		case "writeOnly":
			s.WriteOnly = boolValue(val)
		case "xml":
			if x := lookupPointer(val, "/name"); x != nil {
				s.XMLName = x.Value
			}
		}
	}
	return s
}

func (d *schemaDecoder) decodeList(n *yaml.Node) []*Schema {
	if n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*Schema, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, d.decode(c))
	}
	return out
}

// resolveRefs binds every reference node seen so far. Targets decoded on
// the way may add further references, so the list is walked by index.
func (d *schemaDecoder) resolveRefs() {
	for i := 0; i < len(d.refs); i++ {
		s := d.refs[i]
		if s.Target != nil {
			continue
		}
		if strings.HasPrefix(s.Ref, "#") {
			if n := lookupPointer(d.root, s.Ref); n != nil {
				s.Target = d.decode(n)
				continue
			}
		}
		if d.external != nil {
			s.Target = d.external(s.Ref)
		}
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}

func stringList(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Value == "" {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c = deref(c); c.Kind == yaml.ScalarNode {
				out = append(out, c.Value)
			}
		}
		return out
	}
	return nil
}

func floatPtr(n *yaml.Node) *float64 {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!bool" {
		return nil
	}
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func boolValue(n *yaml.Node) bool {
	var b bool
	if n.Kind != yaml.ScalarNode || n.Decode(&b) != nil {
		return false
	}
	return b
}

func uintValue(n *yaml.Node) uint64 {
	f := floatPtr(n)
	if f == nil || *f < 0 {
		return 0
	}
	return uint64(*f)
}

func nodeValue(n *yaml.Node) any {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil
	}
	return plainValue(v)
}

// plainValue normalizes decoded YAML/JSON values to the JSON data model:
// integers become int64 and mappings become map[string]any.
func plainValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return float64(t)
		}
		return int64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plainValue(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = plainValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plainValue(val)
		}
		return out
	}
	return v
}
