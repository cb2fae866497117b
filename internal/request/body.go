package request

import (
	"bytes"
	"encoding/xml"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/mark3labs/swagger2har/internal/reqerrors"
	"github.com/mark3labs/swagger2har/internal/spec"
)

// MultipartBoundary is the fixed boundary of multipart bodies.
const MultipartBoundary = "swagger2har-boundary"

// encoder serializes a body value for one media type.
type encoder func(contentType string, value any, schema *spec.Schema) (*Body, error)

type encoderEntry struct {
	match  func(mediaType string) bool
	encode encoder
}

var encoders = []encoderEntry{
	{match: isJSON, encode: encodeJSON},
	{match: equals("application/x-www-form-urlencoded"), encode: encodeForm},
	{match: equals("multipart/form-data"), encode: encodeMultipart},
	{match: isXML, encode: encodeXML},
	{match: hasPrefix("text/"), encode: encodeText},
	{match: isBinary, encode: encodeRaw},
}

// EncodeBody serializes value for contentType. An unknown media type yields
// an UnsupportedContentTypeError.
func EncodeBody(contentType string, value any, schema *spec.Schema) (*Body, error) {
	mediaType := normalizeMediaType(contentType)
	for _, e := range encoders {
		if e.match(mediaType) {
			return e.encode(contentType, value, schema)
		}
	}
	return nil, &reqerrors.UnsupportedContentTypeError{ContentType: contentType}
}

func normalizeMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func equals(want string) func(string) bool {
	return func(mt string) bool { return mt == want }
}

func hasPrefix(prefix string) func(string) bool {
	return func(mt string) bool { return strings.HasPrefix(mt, prefix) }
}

func isJSON(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json") || mt == "*/*"
}

func isXML(mt string) bool {
	return mt == "application/xml" || mt == "text/xml" || strings.HasSuffix(mt, "+xml")
}

func isBinary(mt string) bool {
	switch {
	case mt == "application/octet-stream", mt == "application/pdf", mt == "application/zip":
		return true
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "audio/"), strings.HasPrefix(mt, "video/"):
		return true
	}
	return false
}

func encodeJSON(contentType string, value any, schema *spec.Schema) (*Body, error) {
	if raw, ok := value.([]byte); ok {
		return &Body{ContentType: contentType, Data: append([]byte(nil), raw...)}, nil
	}
	data, err := EncodeJSON(value, schema, "  ")
	if err != nil {
		return nil, err
	}
	return &Body{ContentType: contentType, Data: data}, nil
}

// formFields flattens a mapping into ordered form fields. Arrays repeat the
// field; nested objects are rendered as compact JSON.
func formFields(value any, schema *spec.Schema) []Pair {
	m, ok := asMap(value)
	if !ok {
		if value == nil {
			return nil
		}
		return []Pair{{Name: "value", Value: formatScalar(value)}}
	}
	var out []Pair
	for _, k := range orderedKeys(m, schema) {
		if list, ok := asList(m[k]); ok {
			for _, v := range list {
				out = append(out, Pair{Name: k, Value: formatScalar(v)})
			}
			continue
		}
		out = append(out, Pair{Name: k, Value: formatScalar(m[k])})
	}
	return out
}

func encodeForm(contentType string, value any, schema *spec.Schema) (*Body, error) {
	if raw, ok := rawBytes(value); ok {
		return &Body{ContentType: contentType, Data: raw}, nil
	}
	params := formFields(value, schema)
	return &Body{ContentType: contentType, Data: []byte(encodeQuery(params)), Params: params}, nil
}

func encodeMultipart(_ string, value any, schema *spec.Schema) (*Body, error) {
	params := formFields(value, schema)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(MultipartBoundary); err != nil {
		return nil, err
	}
	for _, p := range params {
		if err := w.WriteField(p.Name, p.Value); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Body{ContentType: w.FormDataContentType(), Data: buf.Bytes(), Params: params}, nil
}

func encodeText(contentType string, value any, _ *spec.Schema) (*Body, error) {
	if raw, ok := rawBytes(value); ok {
		return &Body{ContentType: contentType, Data: raw}, nil
	}
	return &Body{ContentType: contentType, Data: []byte(formatScalar(value))}, nil
}

func encodeRaw(contentType string, value any, _ *spec.Schema) (*Body, error) {
	if raw, ok := rawBytes(value); ok {
		return &Body{ContentType: contentType, Data: raw}, nil
	}
	return &Body{ContentType: contentType, Data: []byte(formatScalar(value))}, nil
}

func rawBytes(value any) ([]byte, bool) {
	switch t := value.(type) {
	case []byte:
		return append([]byte(nil), t...), true
	case string:
		return []byte(t), true
	}
	return nil, false
}

func encodeXML(contentType string, value any, schema *spec.Schema) (*Body, error) {
	if raw, ok := rawBytes(value); ok {
		return &Body{ContentType: contentType, Data: raw}, nil
	}
	root := "root"
	if node, err := schema.Resolve(); err == nil && node != nil && node.XMLName != "" {
		root = node.XMLName
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := writeXMLElement(enc, root, value, schema); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return &Body{ContentType: contentType, Data: buf.Bytes()}, nil
}

func writeXMLElement(enc *xml.Encoder, name string, value any, schema *spec.Schema) error {
	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if m, ok := asMap(value); ok {
		for _, k := range orderedKeys(m, schema) {
			if err := writeXMLChild(enc, k, m[k], propertySchema(schema, k)); err != nil {
				return err
			}
		}
	} else if value != nil {
		if err := enc.EncodeToken(xml.CharData(formatScalar(value))); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// writeXMLChild repeats the element for each entry of a sequence.
func writeXMLChild(enc *xml.Encoder, name string, value any, schema *spec.Schema) error {
	if node, err := schema.Resolve(); err == nil && node != nil && node.XMLName != "" {
		name = node.XMLName
	}
	list, ok := asList(value)
	if !ok {
		return writeXMLElement(enc, name, value, schema)
	}
	items := itemSchema(schema)
	for _, v := range list {
		if err := writeXMLElement(enc, name, v, items); err != nil {
			return err
		}
	}
	return nil
}
