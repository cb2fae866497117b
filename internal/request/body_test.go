package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swagger2har/internal/reqerrors"
	"github.com/mark3labs/swagger2har/internal/spec"
)

func petSchema() *spec.Schema {
	return &spec.Schema{
		Types:   []string{"object"},
		XMLName: "pet",
		Properties: map[string]*spec.Schema{
			"name": stringSchema(),
			"tags": {Types: []string{"array"}, Items: stringSchema()},
		},
		PropertyOrder: []string{"name", "tags"},
	}
}

func TestEncodeBody(t *testing.T) {
	t.Parallel()

	pet := map[string]any{"tags": []any{"a", "b"}, "name": "rex & co"}

	tests := []struct {
		name        string
		contentType string
		value       any
		schema      *spec.Schema
		wantType    string
		wantData    string
		wantParams  []Pair
	}{
		{
			name:        "json",
			contentType: "application/json",
			value:       map[string]any{"b": int64(1), "a": "<x>"},
			wantType:    "application/json",
			wantData:    "{\n  \"a\": \"<x>\",\n  \"b\": 1\n}",
		},
		{
			name:        "json follows schema order",
			contentType: "application/json",
			value: map[string]any{
				"alpha": int64(0),
				"zeta":  "string",
				"nested": map[string]any{"y": true, "x": []any{map[string]any{"k2": int64(2), "k1": int64(1)}}},
			},
			schema: &spec.Schema{
				Types: []string{"object"},
				Properties: map[string]*spec.Schema{
					"zeta":  stringSchema(),
					"alpha": {Types: []string{"integer"}},
					"nested": {
						Types: []string{"object"},
						Properties: map[string]*spec.Schema{
							"y": {Types: []string{"boolean"}},
							"x": {Types: []string{"array"}, Items: &spec.Schema{
								Types: []string{"object"},
								Properties: map[string]*spec.Schema{
									"k1": integerSchema(),
									"k2": integerSchema(),
								},
								PropertyOrder: []string{"k2", "k1"},
							}},
						},
						PropertyOrder: []string{"y", "x"},
					},
				},
				PropertyOrder: []string{"zeta", "alpha", "nested"},
			},
			wantType: "application/json",
			wantData: `{
  "zeta": "string",
  "alpha": 0,
  "nested": {
    "y": true,
    "x": [
      {
        "k2": 2,
        "k1": 1
      }
    ]
  }
}`,
		},
		{
			name:        "json suffix with parameters",
			contentType: "application/merge-patch+json; charset=utf-8",
			value:       []any{true},
			wantType:    "application/merge-patch+json; charset=utf-8",
			wantData:    "[\n  true\n]",
		},
		{
			name:        "json string is quoted",
			contentType: "application/json",
			value:       "string",
			wantType:    "application/json",
			wantData:    `"string"`,
		},
		{
			name:        "form follows schema order",
			contentType: "application/x-www-form-urlencoded",
			value:       pet,
			schema:      petSchema(),
			wantType:    "application/x-www-form-urlencoded",
			wantData:    "name=rex+%26+co&tags=a&tags=b",
			wantParams:  []Pair{{"name", "rex & co"}, {"tags", "a"}, {"tags", "b"}},
		},
		{
			name:        "text",
			contentType: "text/plain",
			value:       int64(5),
			wantType:    "text/plain",
			wantData:    "5",
		},
		{
			name:        "binary passthrough",
			contentType: "application/octet-stream",
			value:       []byte{0x00, 0x01},
			wantType:    "application/octet-stream",
			wantData:    "\x00\x01",
		},
		{
			name:        "image string",
			contentType: "image/png",
			value:       "binary",
			wantType:    "image/png",
			wantData:    "binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body, err := EncodeBody(tt.contentType, tt.value, tt.schema)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, body.ContentType)
			assert.Equal(t, tt.wantData, string(body.Data))
			assert.Equal(t, tt.wantParams, body.Params)
		})
	}
}

func TestEncodeBody_Multipart(t *testing.T) {
	t.Parallel()

	body, err := EncodeBody("multipart/form-data", map[string]any{"name": "rex", "tags": []any{"a"}}, petSchema())
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data; boundary="+MultipartBoundary, body.ContentType)
	assert.Equal(t, []Pair{{"name", "rex"}, {"tags", "a"}}, body.Params)

	data := string(body.Data)
	assert.Contains(t, data, "--"+MultipartBoundary+"\r\n")
	assert.Contains(t, data, "Content-Disposition: form-data; name=\"name\"\r\n\r\nrex\r\n")
	assert.Contains(t, data, "--"+MultipartBoundary+"--")
}

func TestEncodeBody_XML(t *testing.T) {
	t.Parallel()

	body, err := EncodeBody("application/xml", map[string]any{"tags": []any{"a", "b"}, "name": "rex & co"}, petSchema())
	require.NoError(t, err)

	data := string(body.Data)
	assert.Contains(t, data, "<pet>")
	assert.Contains(t, data, "<name>rex &amp; co</name>")
	assert.Contains(t, data, "<tags>a</tags>")
	assert.Contains(t, data, "<tags>b</tags>")
	assert.Contains(t, data, "</pet>")
	assert.Less(t, strings.Index(data, "<name>"), strings.Index(data, "<tags>"))

	anonymous, err := EncodeBody("text/xml", map[string]any{"id": int64(1)}, nil)
	require.NoError(t, err)
	assert.Contains(t, string(anonymous.Data), "<root>")
	assert.Contains(t, string(anonymous.Data), "<id>1</id>")
}

func TestEncodeBody_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := EncodeBody("application/x-custom", "x", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, reqerrors.ErrUnsupportedContentType))
}
