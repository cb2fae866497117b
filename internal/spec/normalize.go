package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// BuildOption configures how the Document is built from an OpenAPI doc.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
	logger      *zap.Logger
	err         error
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.includeTags == nil {
			c.includeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.excludeTags == nil {
			c.excludeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern makes BuildDocument
// fail.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				if c.err == nil {
					c.err = fmt.Errorf("invalid path pattern %q: %w", p, err)
				}
				continue
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithBuildLogger sets the logger used to report degraded input.
func WithBuildLogger(l *zap.Logger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// BuildDocument converts an OpenAPI v3 document into the internal model,
// applying tag, method and path filters. raw, when given, is the source the
// document was parsed from; it is only used to recover declaration order of
// mapping keys (paths, properties, content types, schemes inside a security
// requirement), which falls back to lexical order otherwise.
func BuildDocument(ctx context.Context, doc *openapi3.T, raw []byte, opts ...BuildOption) (*Document, error) {
	_ = ctx
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	cfg := &buildConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	b := &builder{
		cfg:   cfg,
		doc:   doc,
		order: newDeclOrder(raw),
		memo:  make(map[*openapi3.Schema]*Schema),
	}

	d := &Document{}
	if doc.Info != nil {
		d.Title = safeStr(doc.Info.Title)
		d.Version = safeStr(doc.Info.Version)
		d.Description = safeStr(doc.Info.Description)
	}
	d.Servers = toServers(doc.Servers)

	if doc.Components != nil {
		if len(doc.Components.Schemas) > 0 {
			d.Schemas = make(map[string]*Schema, len(doc.Components.Schemas))
			for _, name := range orderKeys(doc.Components.Schemas, b.order.keys("/components/schemas")) {
				s := b.schemaRef(doc.Components.Schemas[name], "/components/schemas/"+escapePointerToken(name))
				if s == nil {
					continue
				}
				d.Schemas[name] = s
				d.SchemaNames = append(d.SchemaNames, name)
			}
		}
		if len(doc.Components.SecuritySchemes) > 0 {
			d.SecuritySchemes = make(map[string]*SecurityScheme, len(doc.Components.SecuritySchemes))
			for name, ref := range doc.Components.SecuritySchemes {
				if ref == nil || ref.Value == nil {
					continue
				}
				d.SecuritySchemes[name] = toSecurityScheme(name, ref.Value)
			}
		}
	}

	var docSecurity []SecurityRequirement
	if len(doc.Security) > 0 {
		docSecurity = b.security(doc.Security, "/security")
	}

	for _, p := range orderKeys(doc.Paths, b.order.keys("/paths")) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		itemPtr := "/paths/" + escapePointerToken(p)
		base := b.parameters(nil, item.Parameters)

		ops := []struct {
			m HttpMethod
			o *openapi3.Operation
		}{
			{GET, item.Get},
			{POST, item.Post},
			{PUT, item.Put},
			{DELETE, item.Delete},
			{PATCH, item.Patch},
			{HEAD, item.Head},
			{OPTIONS, item.Options},
			{TRACE, item.Trace},
		}
		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[pair.m]; !ok {
					continue
				}
			}
			if len(cfg.pathRes) > 0 {
				matched := false
				for _, re := range cfg.pathRes {
					if re.MatchString(p) {
						matched = true
						break
					}
				}
				if !matched {
					continue
				}
			}

			tags := make([]string, 0, len(pair.o.Tags))
			for _, t := range pair.o.Tags {
				t = strings.TrimSpace(t)
				if t != "" {
					tags = append(tags, t)
				}
			}
			if !allowByTags(tags, cfg) {
				continue
			}

			opPtr := itemPtr + "/" + strings.ToLower(string(pair.m))
			op := Operation{
				ID:          string(pair.m) + " " + p,
				OperationID: safeStr(pair.o.OperationID),
				Method:      pair.m,
				Path:        p,
				Summary:     safeStr(pair.o.Summary),
				Description: safeStr(pair.o.Description),
				Tags:        tags,
				Deprecated:  pair.o.Deprecated,
				Parameters:  b.parameters(base, pair.o.Parameters),
				RequestBody: b.requestBody(pair.o.RequestBody, opPtr+"/requestBody"),
			}

			switch {
			case pair.o.Security != nil:
				op.Security = b.security(*pair.o.Security, opPtr+"/security")
			case docSecurity != nil:
				op.Security = append([]SecurityRequirement(nil), docSecurity...)
			}

			switch {
			case pair.o.Servers != nil && len(*pair.o.Servers) > 0:
				op.Servers = toServers(*pair.o.Servers)
			case len(item.Servers) > 0:
				op.Servers = toServers(item.Servers)
			default:
				op.Servers = d.Servers
			}

			d.Operations = append(d.Operations, op)
		}
	}

	d.Tags = collectSortedTags(d.Operations)
	return d, nil
}

// builder carries the per-document conversion state. memo maps kin-openapi
// schema identities onto converted nodes so shared and recursive schemas
// stay shared.
type builder struct {
	cfg   *buildConfig
	doc   *openapi3.T
	order *declOrder
	memo  map[*openapi3.Schema]*Schema
}

func allowByTags(tags []string, cfg *buildConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

func safeStr(s string) string { return strings.TrimSpace(s) }

// parameters merges refs over base. A ref with the same location and name
// as an inherited parameter replaces it in place; new ones are appended.
func (b *builder) parameters(base []Parameter, refs openapi3.Parameters) []Parameter {
	out := append([]Parameter(nil), base...)
	for _, ref := range refs {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := b.parameter(ref)
		replaced := false
		for i := range out {
			if out[i].In == p.In && out[i].Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

func (b *builder) parameter(ref *openapi3.ParameterRef) Parameter {
	v := ref.Value
	p := Parameter{
		Name:          safeStr(v.Name),
		In:            ParameterLocation(strings.ToLower(safeStr(v.In))),
		Required:      v.Required,
		Style:         v.Style,
		AllowReserved: v.AllowReserved,
		Description:   safeStr(v.Description),
	}
	if v.Explode != nil {
		explode := *v.Explode
		p.Explode = &explode
	}
	if p.In == InPath {
		p.Required = true
	}
	if v.Schema != nil {
		p.Schema = b.schemaRef(v.Schema, "")
	} else if len(v.Content) > 0 {
		for _, ct := range orderKeys(v.Content, nil) {
			if mt := v.Content[ct]; mt != nil && mt.Schema != nil {
				p.Schema = b.schemaRef(mt.Schema, "")
				break
			}
		}
	}
	switch {
	case v.Example != nil:
		p.Example, p.HasExample = v.Example, true
	case len(v.Examples) > 0:
		p.Example, p.HasExample = firstExample(v.Examples)
	}
	return p
}

func (b *builder) requestBody(ref *openapi3.RequestBodyRef, ptr string) *RequestBody {
	if ref == nil || ref.Value == nil {
		return nil
	}
	if strings.HasPrefix(ref.Ref, "#/") {
		ptr = ref.Ref[1:]
	}
	rb := &RequestBody{Required: ref.Value.Required}
	content := ref.Value.Content
	for _, ct := range orderKeys(content, b.order.keys(ptr+"/content")) {
		mt := content[ct]
		if mt == nil {
			continue
		}
		m := MediaType{
			ContentType: ct,
			Schema:      b.schemaRef(mt.Schema, ptr+"/content/"+escapePointerToken(ct)+"/schema"),
		}
		switch {
		case mt.Example != nil:
			m.Example, m.HasExample = mt.Example, true
		case len(mt.Examples) > 0:
			m.Example, m.HasExample = firstExample(mt.Examples)
		}
		rb.Content = append(rb.Content, m)
	}
	return rb
}

// firstExample picks the first named example by key.
func firstExample(examples openapi3.Examples) (any, bool) {
	for _, name := range orderKeys(examples, nil) {
		if ref := examples[name]; ref != nil && ref.Value != nil && ref.Value.Value != nil {
			return ref.Value.Value, true
		}
	}
	return nil, false
}

func (b *builder) security(reqs openapi3.SecurityRequirements, ptr string) []SecurityRequirement {
	out := make([]SecurityRequirement, 0, len(reqs))
	for i, req := range reqs {
		names := orderKeys(req, b.order.keys(ptr+"/"+strconv.Itoa(i)))
		r := make(SecurityRequirement, 0, len(names))
		for _, name := range names {
			r = append(r, SchemeRequirement{Scheme: name, Scopes: append([]string(nil), req[name]...)})
		}
		out = append(out, r)
	}
	return out
}

func toServers(servers openapi3.Servers) []Server {
	var out []Server
	for _, s := range servers {
		if s == nil {
			continue
		}
		srv := Server{URL: safeStr(s.URL), Description: safeStr(s.Description)}
		if len(s.Variables) > 0 {
			srv.Variables = make(map[string]ServerVariable, len(s.Variables))
			for name, v := range s.Variables {
				if v == nil {
					continue
				}
				srv.Variables[name] = ServerVariable{
					Default:     v.Default,
					Enum:        append([]string(nil), v.Enum...),
					Description: v.Description,
				}
			}
		}
		out = append(out, srv)
	}
	return out
}

func toSecurityScheme(name string, v *openapi3.SecurityScheme) *SecurityScheme {
	s := &SecurityScheme{
		Name:             name,
		Type:             SecuritySchemeType(v.Type),
		Description:      v.Description,
		In:               ParameterLocation(strings.ToLower(v.In)),
		ParamName:        v.Name,
		Scheme:           strings.ToLower(v.Scheme),
		BearerFormat:     v.BearerFormat,
		OpenIDConnectURL: v.OpenIdConnectUrl,
	}
	if f := v.Flows; f != nil {
		for _, flow := range []struct {
			kind string
			f    *openapi3.OAuthFlow
		}{
			{"implicit", f.Implicit},
			{"password", f.Password},
			{"clientCredentials", f.ClientCredentials},
			{"authorizationCode", f.AuthorizationCode},
		} {
			if flow.f == nil {
				continue
			}
			scopes := make(map[string]string, len(flow.f.Scopes))
			for k, v := range flow.f.Scopes {
				scopes[k] = v
			}
			s.Flows = append(s.Flows, OAuthFlow{
				Kind:             flow.kind,
				AuthorizationURL: flow.f.AuthorizationURL,
				TokenURL:         flow.f.TokenURL,
				RefreshURL:       flow.f.RefreshURL,
				Scopes:           scopes,
			})
		}
	}
	return s
}

// schemaRef converts a kin-openapi schema reference. ptr is the JSON pointer
// of the node in the raw document, used only for property order; references
// into the same document switch to the pointer of their target.
func (b *builder) schemaRef(ref *openapi3.SchemaRef, ptr string) *Schema {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		s := &Schema{Ref: ref.Ref}
		if ref.Value == nil {
			b.cfg.logger.Debug("unresolved schema reference", zap.String("ref", ref.Ref))
			return s
		}
		target := ""
		if strings.HasPrefix(ref.Ref, "#/") {
			target = ref.Ref[1:]
		}
		s.Target = b.schema(ref.Value, target)
		return s
	}
	if ref.Value == nil {
		return nil
	}
	return b.schema(ref.Value, ptr)
}

func (b *builder) schema(v *openapi3.Schema, ptr string) *Schema {
	if s, ok := b.memo[v]; ok {
		return s
	}
	s := &Schema{
		Format:           v.Format,
		Pattern:          v.Pattern,
		Title:            v.Title,
		Description:      v.Description,
		Nullable:         v.Nullable,
		ReadOnly:         v.ReadOnly,
		WriteOnly:        v.WriteOnly,
		Minimum:          v.Min,
		Maximum:          v.Max,
		ExclusiveMinimum: v.ExclusiveMin,
		ExclusiveMaximum: v.ExclusiveMax,
		MultipleOf:       v.MultipleOf,
		MinLength:        v.MinLength,
		MaxLength:        v.MaxLength,
		MinItems:         v.MinItems,
		MaxItems:         v.MaxItems,
		Required:         append([]string(nil), v.Required...),
	}
	b.memo[v] = s

	if v.Type != "" {
		s.Types = []string{v.Type}
	}
	if len(v.Enum) > 0 {
		s.Enum = append([]any(nil), v.Enum...)
	}
	if v.Default != nil {
		s.Default, s.HasDefault = v.Default, true
	}
	if v.Example != nil {
		s.Example, s.HasExample = v.Example, true
	}
	if v.XML != nil {
		s.XMLName = v.XML.Name
	}

	// 3.1 keywords kin-openapi keeps as extensions.
	if c, ok := v.Extensions["const"]; ok {
		s.Const, s.HasConst = extensionValue(c), true
	}
	if ex, ok := extensionValue(v.Extensions["examples"]).([]any); ok {
		s.Examples = ex
	}
	if raw, ok := v.Extensions["prefixItems"]; ok {
		s.PrefixItems = b.rawSchemas(extensionValue(raw))
	}

	if len(v.Properties) > 0 {
		declared := b.order.keys(childPtr(ptr, "properties"))
		s.Properties = make(map[string]*Schema, len(v.Properties))
		for _, name := range orderKeys(v.Properties, declared) {
			s.Properties[name] = b.schemaRef(v.Properties[name], childPtr(ptr, "properties", escapePointerToken(name)))
			s.PropertyOrder = append(s.PropertyOrder, name)
		}
	}
	s.Items = b.schemaRef(v.Items, childPtr(ptr, "items"))
	s.AdditionalProperties = b.schemaRef(v.AdditionalProperties.Schema, childPtr(ptr, "additionalProperties"))
	s.AllOf = b.schemaRefs(v.AllOf, childPtr(ptr, "allOf"))
	s.OneOf = b.schemaRefs(v.OneOf, childPtr(ptr, "oneOf"))
	s.AnyOf = b.schemaRefs(v.AnyOf, childPtr(ptr, "anyOf"))
	return s
}

func (b *builder) schemaRefs(refs openapi3.SchemaRefs, ptr string) []*Schema {
	if len(refs) == 0 {
		return nil
	}
	out := make([]*Schema, 0, len(refs))
	for i, r := range refs {
		out = append(out, b.schemaRef(r, childPtr(ptr, strconv.Itoa(i))))
	}
	return out
}

// rawSchemas decodes a list of schemas kept as generic values, resolving
// component references through the document.
func (b *builder) rawSchemas(v any) []*Schema {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	var n yaml.Node
	if err := n.Encode(list); err != nil {
		return nil
	}
	d := newSchemaDecoder(&n, b.componentSchema)
	out := d.decodeList(&n)
	d.resolveRefs()
	return out
}

func (b *builder) componentSchema(ref string) *Schema {
	name, ok := strings.CutPrefix(ref, "#/components/schemas/")
	if !ok || b.doc.Components == nil {
		return nil
	}
	name = unescapePointerToken(name)
	return b.schemaRef(b.doc.Components.Schemas[name], "/components/schemas/"+escapePointerToken(name))
}

func extensionValue(v any) any {
	if raw, ok := v.(json.RawMessage); ok {
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	}
	return v
}

func childPtr(ptr string, tokens ...string) string {
	if ptr == "" {
		return ""
	}
	return ptr + "/" + strings.Join(tokens, "/")
}

func collectSortedTags(ops []Operation) []string {
	set := make(map[string]struct{})
	for _, op := range ops {
		for _, t := range op.Tags {
			if t = strings.TrimSpace(t); t != "" {
				set[t] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
