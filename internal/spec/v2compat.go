package spec

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"
)

// v2Methods are the operation keys of a Swagger 2.0 path item.
var v2Methods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {}, "options": {}, "head": {}, "patch": {},
}

// fixupV2 rewrites Swagger 2.0 operations that kin-openapi refuses to
// convert, so a request can still be synthesized for them:
//   - several "in: body" parameters are merged into one object body whose
//     properties are the original parameters;
//   - "in: body" parameters next to "in: formData" ones become formData
//     fields and the operation consumes multipart/form-data.
//
// The document is edited as a node tree so key order survives the
// round trip. It reports whether anything changed; on error the input is
// returned untouched.
func fixupV2(data []byte) ([]byte, bool, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return data, false, nil
	}
	paths := mappingValue(deref(doc.Content[0]), "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return data, false, nil
	}

	changed := false
	for i := 1; i < len(paths.Content); i += 2 {
		item := deref(paths.Content[i])
		if item == nil || item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			if _, ok := v2Methods[strings.ToLower(item.Content[j].Value)]; !ok {
				continue
			}
			if op := deref(item.Content[j+1]); op != nil && op.Kind == yaml.MappingNode {
				changed = fixupV2Operation(op) || changed
			}
		}
	}
	if !changed {
		return data, false, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return data, false, err
	}
	if err := enc.Close(); err != nil {
		return data, false, err
	}
	return buf.Bytes(), true, nil
}

func fixupV2Operation(op *yaml.Node) bool {
	params := mappingValue(op, "parameters")
	if params == nil || params.Kind != yaml.SequenceNode {
		return false
	}
	var bodies []*yaml.Node
	hasFormData := false
	for _, p := range params.Content {
		switch strings.ToLower(scalarValue(mappingValue(deref(p), "in"))) {
		case "body":
			bodies = append(bodies, deref(p))
		case "formdata":
			hasFormData = true
		}
	}

	switch {
	case len(bodies) > 0 && hasFormData:
		for i, p := range params.Content {
			if strings.EqualFold(scalarValue(mappingValue(deref(p), "in")), "body") {
				params.Content[i] = formFieldFromBody(deref(p))
			}
		}
		consumes := mappingValue(op, "consumes")
		if consumes == nil || consumes.Kind != yaml.SequenceNode {
			consumes = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			setMappingValue(op, "consumes", consumes)
		}
		for _, c := range consumes.Content {
			if scalarValue(c) == "multipart/form-data" {
				return true
			}
		}
		consumes.Content = append(consumes.Content, strNode("multipart/form-data"))
		return true

	case len(bodies) > 1:
		props := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		rest := make([]*yaml.Node, 0, len(params.Content))
		for _, p := range params.Content {
			pm := deref(p)
			if !strings.EqualFold(scalarValue(mappingValue(pm, "in")), "body") {
				rest = append(rest, p)
				continue
			}
			name := paramName(pm)
			schema := mappingValue(pm, "schema")
			if schema == nil {
				schema = schemaFromParam(pm)
			}
			props.Content = append(props.Content, strNode(name), schema)
			if scalarValue(mappingValue(pm, "required")) == "true" {
				required.Content = append(required.Content, strNode(name))
			}
		}
		schema := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(schema, "type", strNode("object"))
		setMappingValue(schema, "properties", props)
		if len(required.Content) > 0 {
			setMappingValue(schema, "required", required)
		}
		merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(merged, "in", strNode("body"))
		setMappingValue(merged, "name", strNode("body"))
		setMappingValue(merged, "schema", schema)
		params.Content = append([]*yaml.Node{merged}, rest...)
		return true
	}
	return false
}

// formFieldFromBody turns a body parameter into a formData field. Types
// that formData cannot carry, such as referenced objects, become strings.
func formFieldFromBody(p *yaml.Node) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setMappingValue(out, "in", strNode("formData"))
	setMappingValue(out, "name", strNode(paramName(p)))
	for _, key := range []string{"description", "required"} {
		if v := mappingValue(p, key); v != nil {
			setMappingValue(out, key, v)
		}
	}

	src := p
	if schema := deref(mappingValue(p, "schema")); schema != nil && schema.Kind == yaml.MappingNode {
		src = schema
	}
	typ := scalarValue(mappingValue(src, "type"))
	switch typ {
	case "string", "number", "integer", "boolean", "array", "file":
	default:
		typ = "string"
	}
	setMappingValue(out, "type", strNode(typ))
	if typ == "array" {
		if items := mappingValue(src, "items"); items != nil {
			setMappingValue(out, "items", items)
		}
	}
	if f := scalarValue(mappingValue(src, "format")); f != "" {
		setMappingValue(out, "format", strNode(f))
	}
	return out
}

// schemaFromParam builds a schema from the inline type of a parameter.
func schemaFromParam(p *yaml.Node) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	typ := scalarValue(mappingValue(p, "type"))
	if typ == "" {
		typ = "string"
	}
	setMappingValue(out, "type", strNode(typ))
	for _, key := range []string{"format", "items", "enum", "default"} {
		if v := mappingValue(p, key); v != nil {
			setMappingValue(out, key, v)
		}
	}
	return out
}

func paramName(p *yaml.Node) string {
	if name := scalarValue(mappingValue(p, "name")); name != "" {
		return name
	}
	return "field"
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return deref(m.Content[i+1])
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, strNode(key), v)
}

func scalarValue(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
