package request

import (
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/mark3labs/swagger2har/internal/example"
	"github.com/mark3labs/swagger2har/internal/reqerrors"
	"github.com/mark3labs/swagger2har/internal/spec"
)

// Parameters holds serialized parameter values per location, in
// declaration order. Path values are percent-encoded; the others are raw.
type Parameters struct {
	Path   []Pair
	Query  []Pair
	Header []Pair
	Cookie []Pair
}

// Serialization styles.
const (
	StyleForm           = "form"
	StyleSimple         = "simple"
	StyleLabel          = "label"
	StyleMatrix         = "matrix"
	StyleSpaceDelimited = "spaceDelimited"
	StylePipeDelimited  = "pipeDelimited"
	StyleDeepObject     = "deepObject"
)

// ResolveParameters serializes params using variables as the value source.
// A required parameter missing from variables gets its declared example or
// a generated one; a missing optional parameter is skipped. gen may be nil.
func ResolveParameters(params []spec.Parameter, variables map[string]any, gen *example.Generator) (*Parameters, error) {
	r := paramResolver{gen: gen, logger: zap.NewNop(), strict: true}
	return r.resolve(params, variables)
}

type paramResolver struct {
	gen    *example.Generator
	logger *zap.Logger
	// strict propagates unresolved schema references instead of
	// substituting an empty value.
	strict bool
}

func (r paramResolver) resolve(params []spec.Parameter, variables map[string]any) (*Parameters, error) {
	out := &Parameters{}
	for i := range params {
		p := &params[i]
		value, ok := variables[p.Name]
		if !ok {
			if !p.Required {
				continue
			}
			v, err := r.standIn(p)
			if err != nil {
				return nil, err
			}
			value = v
		}

		switch p.In {
		case spec.InPath:
			out.Path = append(out.Path, Pair{Name: p.Name, Value: serializePath(p, value)})
		case spec.InQuery:
			out.Query = append(out.Query, serializeForm(p, value)...)
		case spec.InHeader:
			if !httpguts.ValidHeaderFieldName(p.Name) {
				r.logger.Debug("dropping header parameter with invalid name", zap.String("name", p.Name))
				continue
			}
			v := serializeSimple(p, value, false)
			if !httpguts.ValidHeaderFieldValue(v) {
				r.logger.Debug("dropping header parameter with invalid value", zap.String("name", p.Name))
				continue
			}
			out.Header = append(out.Header, Pair{Name: p.Name, Value: v})
		case spec.InCookie:
			out.Cookie = append(out.Cookie, serializeForm(p, value)...)
		default:
			r.logger.Debug("skipping parameter with unknown location", zap.String("name", p.Name), zap.String("in", string(p.In)))
		}
	}
	return out, nil
}

func (r paramResolver) standIn(p *spec.Parameter) (any, error) {
	if p.HasExample {
		return p.Example, nil
	}
	gen := r.gen
	if gen == nil {
		gen = example.NewGenerator(example.WithMode(example.ModeRequest))
	}
	v, err := gen.Generate(p.Schema)
	if err != nil {
		if !r.strict && errors.Is(err, reqerrors.ErrSchemaResolution) {
			r.logger.Debug("using empty value for parameter", zap.String("name", p.Name), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func styleOf(p *spec.Parameter) string {
	if p.Style != "" {
		return p.Style
	}
	switch p.In {
	case spec.InQuery, spec.InCookie:
		return StyleForm
	}
	return StyleSimple
}

func explodeOf(p *spec.Parameter) bool {
	if p.Explode != nil {
		return *p.Explode
	}
	return styleOf(p) == StyleForm
}

// element renders one scalar; path elements are percent-encoded before
// delimiters are added.
type element func(v any) string

func rawElement(v any) string { return formatScalar(v) }

func pathElement(v any) string { return url.PathEscape(formatScalar(v)) }

// serializePath renders simple, label and matrix styles.
func serializePath(p *spec.Parameter, value any) string {
	explode := explodeOf(p)
	name := url.PathEscape(p.Name)
	switch styleOf(p) {
	case StyleLabel:
		if list, ok := asList(value); ok {
			sep := ","
			if explode {
				sep = "."
			}
			return "." + joinElements(list, sep, pathElement)
		}
		if m, ok := asMap(value); ok {
			if explode {
				return "." + joinPairs(m, p.Schema, "=", ".", pathElement)
			}
			return "." + joinPairs(m, p.Schema, ",", ",", pathElement)
		}
		return "." + pathElement(value)
	case StyleMatrix:
		if list, ok := asList(value); ok {
			if len(list) == 0 {
				return ";" + name
			}
			if explode {
				parts := make([]string, len(list))
				for i, v := range list {
					parts[i] = ";" + name + "=" + pathElement(v)
				}
				return strings.Join(parts, "")
			}
			return ";" + name + "=" + joinElements(list, ",", pathElement)
		}
		if m, ok := asMap(value); ok {
			if explode {
				return ";" + joinPairs(m, p.Schema, "=", ";", pathElement)
			}
			return ";" + name + "=" + joinPairs(m, p.Schema, ",", ",", pathElement)
		}
		return ";" + name + "=" + pathElement(value)
	}
	return serializeSimple(p, value, true)
}

// serializeSimple renders the simple style used by path and header values.
func serializeSimple(p *spec.Parameter, value any, encode bool) string {
	el := element(rawElement)
	if encode {
		el = pathElement
	}
	if list, ok := asList(value); ok {
		return joinElements(list, ",", el)
	}
	if m, ok := asMap(value); ok {
		if explodeOf(p) {
			return joinPairs(m, p.Schema, "=", ",", el)
		}
		return joinPairs(m, p.Schema, ",", ",", el)
	}
	return el(value)
}

// serializeForm renders query and cookie styles into name/value pairs.
func serializeForm(p *spec.Parameter, value any) []Pair {
	style := styleOf(p)
	explode := explodeOf(p)

	if m, ok := asMap(value); ok {
		keys := orderedKeys(m, p.Schema)
		switch {
		case style == StyleDeepObject:
			out := make([]Pair, 0, len(keys))
			for _, k := range keys {
				out = append(out, Pair{Name: p.Name + "[" + k + "]", Value: formatScalar(m[k])})
			}
			return out
		case explode:
			out := make([]Pair, 0, len(keys))
			for _, k := range keys {
				out = append(out, Pair{Name: k, Value: formatScalar(m[k])})
			}
			return out
		}
		return []Pair{{Name: p.Name, Value: joinPairs(m, p.Schema, delimiter(style), delimiter(style), rawElement)}}
	}

	if list, ok := asList(value); ok {
		if explode {
			out := make([]Pair, 0, len(list))
			for _, v := range list {
				out = append(out, Pair{Name: p.Name, Value: formatScalar(v)})
			}
			return out
		}
		return []Pair{{Name: p.Name, Value: joinElements(list, delimiter(style), rawElement)}}
	}

	return []Pair{{Name: p.Name, Value: formatScalar(value)}}
}

func delimiter(style string) string {
	switch style {
	case StyleSpaceDelimited:
		return " "
	case StylePipeDelimited:
		return "|"
	}
	return ","
}

func joinElements(list []any, sep string, el element) string {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = el(v)
	}
	return strings.Join(parts, sep)
}

// joinPairs renders k<kv>v<sep>k2<kv>v2 in schema property order.
func joinPairs(m map[string]any, schema *spec.Schema, kv, sep string, el element) string {
	keys := orderedKeys(m, schema)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = el(k) + kv + el(m[k])
	}
	return strings.Join(parts, sep)
}
