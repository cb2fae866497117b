package spec

import (
	"sort"

	"github.com/mark3labs/swagger2har/internal/reqerrors"
)

// Schema is a JSON-Schema node. A node with a non-empty Ref is a reference;
// its Target is the node it points at, or nil when the reference could not
// be resolved. Graphs may be cyclic through Target, Properties, Items and
// the combinators.
type Schema struct {
	Ref    string
	Target *Schema

	// Types lists the declared types in declaration order. OpenAPI 3.0
	// documents carry at most one entry; 3.1 documents may list several.
	Types  []string
	Format string

	Enum       []any
	Const      any
	HasConst   bool
	Default    any
	HasDefault bool
	Example    any
	HasExample bool
	Examples   []any

	Properties           map[string]*Schema
	PropertyOrder        []string
	Required             []string
	AdditionalProperties *Schema

	Items       *Schema
	PrefixItems []*Schema
	MinItems    uint64
	MaxItems    *uint64

	AllOf []*Schema
	OneOf []*Schema
	AnyOf []*Schema

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool
	MultipleOf       *float64

	MinLength uint64
	MaxLength *uint64
	Pattern   string

	Nullable    bool
	ReadOnly    bool
	WriteOnly   bool
	Title       string
	Description string
	XMLName     string
}

// Resolve follows the reference chain starting at s and returns the first
// node that is not a reference. A nil receiver resolves to nil.
func (s *Schema) Resolve() (*Schema, error) {
	cur := s
	var seen map[*Schema]struct{}
	for cur != nil && cur.Ref != "" {
		if seen == nil {
			seen = make(map[*Schema]struct{})
		}
		if _, loop := seen[cur]; loop {
			return nil, &reqerrors.SchemaResolutionError{Ref: s.Ref, Circular: true}
		}
		seen[cur] = struct{}{}
		if cur.Target == nil {
			return nil, &reqerrors.SchemaResolutionError{Ref: cur.Ref, Message: "no target"}
		}
		cur = cur.Target
	}
	return cur, nil
}

// PrimaryType returns the first declared type that is not "null", or ""
// when the node only allows null or declares no type.
func (s *Schema) PrimaryType() string {
	for _, t := range s.Types {
		if t != "null" {
			return t
		}
	}
	return ""
}

// AllowsNull reports whether null is an accepted value.
func (s *Schema) AllowsNull() bool {
	if s.Nullable {
		return true
	}
	for _, t := range s.Types {
		if t == "null" {
			return true
		}
	}
	return false
}

// IsRequired reports whether name is listed in the node's required set.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// PropertyNames returns property names in declaration order. Names missing
// from PropertyOrder follow in lexical order.
func (s *Schema) PropertyNames() []string {
	if len(s.Properties) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.Properties))
	seen := make(map[string]struct{}, len(s.Properties))
	for _, name := range s.PropertyOrder {
		if _, ok := s.Properties[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == len(s.Properties) {
		return out
	}
	rest := make([]string, 0, len(s.Properties)-len(out))
	for name := range s.Properties {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
