// Package example synthesizes example values for JSON-Schema nodes.
//
// Values use the JSON data model: nil, bool, int64, float64, string, []any
// and map[string]any. Explicit values taken from the schema (example,
// examples, default, const, enum) are deep copies, so callers may mutate
// the result freely.
package example

import (
	"math/rand/v2"

	"github.com/mohae/deepcopy"

	"github.com/mark3labs/swagger2har/internal/spec"
)

// DefaultMaxDepth bounds the nesting of generated objects and arrays and
// re-entry into recursive schemas.
const DefaultMaxDepth = 6

// Mode selects which side of an exchange the value is generated for.
type Mode int

const (
	// ModeAny keeps both readOnly and writeOnly properties.
	ModeAny Mode = iota
	// ModeRequest omits readOnly properties.
	ModeRequest
	// ModeResponse omits writeOnly properties.
	ModeResponse
)

// Settings configures generation.
type Settings struct {
	// PreferExamples returns explicit example/examples/default values
	// before synthesizing.
	PreferExamples bool
	MaxDepth       int
	// Seed, when set, draws numbers and uuids from a deterministic source
	// instead of returning canonical literals.
	Seed *uint64
	Mode Mode
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{MaxDepth: DefaultMaxDepth}
}

// Option mutates Settings.
type Option func(*Settings)

func WithPreferExamples(prefer bool) Option { return func(s *Settings) { s.PreferExamples = prefer } }
func WithMode(m Mode) Option { return func(s *Settings) { s.Mode = m } }

// WithMaxDepth sets the depth budget; values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.MaxDepth = n
		}
	}
}

// WithSeed makes generation draw from a deterministic random source.
func WithSeed(seed uint64) Option {
	return func(s *Settings) { s.Seed = &seed }
}

// Generator holds immutable settings and is safe for concurrent use.
type Generator struct {
	settings Settings
}

// NewGenerator returns a Generator configured by opts.
func NewGenerator(opts ...Option) *Generator {
	s := DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Generator{settings: s}
}

// Settings returns a copy of the generator's settings.
func (g *Generator) Settings() Settings { return g.settings }

// Generate is a convenience wrapper around NewGenerator(opts...).Generate.
func Generate(s *spec.Schema, opts ...Option) (any, error) {
	return NewGenerator(opts...).Generate(s)
}

// Generate returns an example value for s. It fails only when a $ref cannot
// be resolved; the error then matches reqerrors.ErrSchemaResolution.
func (g *Generator) Generate(s *spec.Schema) (any, error) {
	r := &run{
		settings: g.settings,
		visits:   make(map[*spec.Schema]int),
	}
	if g.settings.Seed != nil {
		seed := *g.settings.Seed
		r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return r.value(s, 0)
}

// run is the per-call state. visits counts how many times each resolved
// composite node is currently on the generation stack. depth counts
// container levels; no composite node is generated at depth MaxDepth or
// below, so cycles through several schemas nest at most MaxDepth levels.
type run struct {
	settings Settings
	visits   map[*spec.Schema]int
	rng      *rand.Rand
}

func (r *run) value(s *spec.Schema, depth int) (any, error) {
	node, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	if v, ok := r.explicit(node); ok {
		return v, nil
	}

	if isComposite(node) {
		if depth >= r.settings.MaxDepth || r.visits[node] >= r.settings.MaxDepth {
			return nil, nil
		}
		r.visits[node]++
		defer func() { r.visits[node]-- }()
	}

	switch {
	case len(node.AllOf) > 0:
		return r.allOf(node, depth)
	case len(node.OneOf) > 0:
		return r.firstBranch(node, node.OneOf[0], depth)
	case len(node.AnyOf) > 0:
		return r.firstBranch(node, node.AnyOf[0], depth)
	}
	return r.shape(node, depth)
}

// explicit returns a value the schema spells out itself.
func (r *run) explicit(node *spec.Schema) (any, bool) {
	if node.HasConst {
		return deepcopy.Copy(node.Const), true
	}
	if r.settings.PreferExamples {
		switch {
		case node.HasExample:
			return deepcopy.Copy(node.Example), true
		case len(node.Examples) > 0:
			return deepcopy.Copy(node.Examples[0]), true
		case node.HasDefault:
			return deepcopy.Copy(node.Default), true
		}
	}
	if len(node.Enum) > 0 {
		return deepcopy.Copy(node.Enum[0]), true
	}
	return nil, false
}

// shape generates from the node's own type, ignoring combinators.
func (r *run) shape(node *spec.Schema, depth int) (any, error) {
	switch typeOf(node) {
	case "object":
		return r.object(node, depth)
	case "array":
		return r.array(node, depth)
	case "string":
		return r.str(node), nil
	case "integer":
		return r.integer(node), nil
	case "number":
		return r.number(node), nil
	case "boolean":
		return true, nil
	}
	return nil, nil
}

func (r *run) allOf(node *spec.Schema, depth int) (any, error) {
	var out any
	if hasOwnShape(node) {
		v, err := r.shape(node, depth)
		if err != nil {
			return nil, err
		}
		out = v
	}
	for _, branch := range node.AllOf {
		v, err := r.value(branch, depth)
		if err != nil {
			return nil, err
		}
		out = merge(out, v)
	}
	return out, nil
}

func (r *run) firstBranch(node, branch *spec.Schema, depth int) (any, error) {
	v, err := r.value(branch, depth)
	if err != nil {
		return nil, err
	}
	if typeOf(node) != "object" {
		return v, nil
	}
	own, err := r.object(node, depth)
	if err != nil {
		return nil, err
	}
	return merge(own, v), nil
}

func (r *run) object(node *spec.Schema, depth int) (any, error) {
	out := make(map[string]any, len(node.Properties))
	for _, name := range node.PropertyNames() {
		prop := node.Properties[name]
		target, err := prop.Resolve()
		if err != nil {
			return nil, err
		}
		if target == nil || r.omitted(target) {
			continue
		}
		required := node.IsRequired(name)
		if !required {
			if depth >= r.settings.MaxDepth {
				continue
			}
			// Optional properties never re-enter a schema already being
			// generated.
			if r.visits[target] > 0 {
				continue
			}
		}
		v, err := r.value(prop, depth+1)
		if err != nil {
			return nil, err
		}
		if v == nil && !required {
			continue
		}
		out[name] = v
	}
	if len(node.Properties) == 0 && node.AdditionalProperties != nil && depth < r.settings.MaxDepth {
		v, err := r.value(node.AdditionalProperties, depth+1)
		if err != nil {
			return nil, err
		}
		out["additionalProperty"] = v
	}
	return out, nil
}

func (r *run) omitted(prop *spec.Schema) bool {
	switch r.settings.Mode {
	case ModeRequest:
		return prop.ReadOnly
	case ModeResponse:
		return prop.WriteOnly
	}
	return false
}

func (r *run) array(node *spec.Schema, depth int) (any, error) {
	if len(node.PrefixItems) > 0 {
		out := make([]any, 0, len(node.PrefixItems))
		for _, item := range node.PrefixItems {
			v, err := r.value(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	if node.Items == nil || (node.MaxItems != nil && *node.MaxItems == 0) {
		return []any{}, nil
	}
	n := 1
	if node.MinItems > 1 {
		n = 2
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.value(node.Items, depth+1)
		if err != nil {
			return nil, err
		}
		if v == nil {
			// Recursion budget exhausted for the item schema.
			return []any{}, nil
		}
		out = append(out, v)
	}
	return out, nil
}

func typeOf(node *spec.Schema) string {
	if t := node.PrimaryType(); t != "" {
		return t
	}
	switch {
	case len(node.Properties) > 0 || node.AdditionalProperties != nil:
		return "object"
	case node.Items != nil || len(node.PrefixItems) > 0:
		return "array"
	}
	return ""
}

func hasOwnShape(node *spec.Schema) bool {
	return typeOf(node) != ""
}

func isComposite(node *spec.Schema) bool {
	if len(node.AllOf) > 0 || len(node.OneOf) > 0 || len(node.AnyOf) > 0 {
		return true
	}
	switch typeOf(node) {
	case "object", "array":
		return true
	}
	return false
}
