package request

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mark3labs/swagger2har/internal/example"
	"github.com/mark3labs/swagger2har/internal/reqerrors"
	"github.com/mark3labs/swagger2har/internal/spec"
)

// Variables are the caller-supplied values for one synthesis.
type Variables struct {
	// Parameters maps parameter names to values (scalars, lists or maps).
	Parameters map[string]any
	// Server overrides server URL variables.
	Server map[string]string
	// Body replaces the generated body when HasBody is set.
	Body    any
	HasBody bool
	// ContentType selects one of the declared body media types.
	ContentType string
}

// Settings configures a Synthesizer.
type Settings struct {
	SecuritySchemes map[string]*spec.SecurityScheme
	ExampleOptions  []example.Option
	Logger          *zap.Logger
	StrictRefs      bool
}

type Option func(*Settings)

// WithSecuritySchemes sets the schemes security requirements refer to.
func WithSecuritySchemes(schemes map[string]*spec.SecurityScheme) Option {
	return func(s *Settings) { s.SecuritySchemes = schemes }
}

// WithExampleOptions configures the generator used for missing parameters
// and bodies. It always runs in request mode unless the options say
// otherwise.
func WithExampleOptions(opts ...example.Option) Option {
	return func(s *Settings) { s.ExampleOptions = append(s.ExampleOptions, opts...) }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

// WithStrictRefs controls whether unresolved schema references fail the
// synthesis (the default) or become null placeholders.
func WithStrictRefs(strict bool) Option {
	return func(s *Settings) { s.StrictRefs = strict }
}

// Synthesizer builds requests. It holds only immutable settings and is
// safe for concurrent use.
type Synthesizer struct {
	settings Settings
	gen      *example.Generator
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	s := Settings{Logger: zap.NewNop(), StrictRefs: true}
	for _, opt := range opts {
		opt(&s)
	}
	genOpts := append([]example.Option{example.WithMode(example.ModeRequest)}, s.ExampleOptions...)
	return &Synthesizer{settings: s, gen: example.NewGenerator(genOpts...)}
}

// Synthesize builds the request for op against server. server may be nil,
// which leaves the URL relative.
func (s *Synthesizer) Synthesize(op *spec.Operation, server *spec.Server, vars Variables, creds Credentials) (*Request, error) {
	if op == nil {
		return nil, errors.New("synthesize: nil operation")
	}
	log := s.settings.Logger.With(zap.String("operation", op.ID))

	base, err := BuildBaseURL(server, vars.Server)
	if err != nil {
		return nil, fmt.Errorf("%s: server url: %w", op.ID, err)
	}

	resolver := paramResolver{gen: s.gen, logger: log, strict: s.settings.StrictRefs}
	params, err := resolver.resolve(op.Parameters, vars.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%s: parameters: %w", op.ID, err)
	}

	path := substitutePath(op.Path, params.Path)
	auth := ApplySecurity(s.settings.SecuritySchemes, op.Security, creds)
	if auth.Requirement >= 0 && !auth.Satisfied {
		log.Debug("security requirement not satisfied by credentials", zap.Int("requirement", auth.Requirement))
	}

	body, err := s.body(op, vars, log)
	if err != nil {
		return nil, fmt.Errorf("%s: body: %w", op.ID, err)
	}

	req := &Request{
		Method:  string(op.Method),
		Query:   overlay(auth.Query, params.Query),
		Cookies: overlay(auth.Cookies, params.Cookie),
		Body:    body,
	}
	req.URL = strings.TrimRight(base, "/") + path
	if len(req.Query) > 0 {
		req.URL += "?" + encodeQuery(req.Query)
	}

	var contentType []Pair
	if body != nil {
		contentType = []Pair{{Name: "Content-Type", Value: body.ContentType}}
	}
	var cookie []Pair
	if len(req.Cookies) > 0 {
		cookie = []Pair{{Name: "Cookie", Value: cookieHeader(req.Cookies)}}
	}
	req.Headers = mergeHeaders(auth.Headers, contentType, params.Header, cookie)
	return req, nil
}

// substitutePath splices resolved path values into the template. Unknown
// placeholders stay literal.
func substitutePath(path string, values []Pair) string {
	if len(values) == 0 {
		return path
	}
	oldnew := make([]string, 0, 2*len(values))
	for _, p := range values {
		oldnew = append(oldnew, "{"+p.Name+"}", p.Value)
	}
	return strings.NewReplacer(oldnew...).Replace(path)
}

func (s *Synthesizer) body(op *spec.Operation, vars Variables, log *zap.Logger) (*Body, error) {
	if op.RequestBody == nil || len(op.RequestBody.Content) == 0 {
		if !vars.HasBody {
			return nil, nil
		}
		ct := vars.ContentType
		if ct == "" {
			ct = "application/json"
		}
		return s.encode(ct, vars.Body, nil, log)
	}

	media := selectMedia(op.RequestBody.Content, vars.ContentType)
	value := vars.Body
	if !vars.HasBody {
		if media.HasExample && s.gen.Settings().PreferExamples {
			value = media.Example
		} else {
			v, err := s.gen.Generate(media.Schema)
			if err != nil {
				if s.settings.StrictRefs || !errors.Is(err, reqerrors.ErrSchemaResolution) {
					return nil, err
				}
				log.Debug("using empty body", zap.Error(err))
			}
			value = v
		}
	}
	return s.encode(media.ContentType, value, media.Schema, log)
}

func (s *Synthesizer) encode(contentType string, value any, schema *spec.Schema, log *zap.Logger) (*Body, error) {
	body, err := EncodeBody(contentType, value, schema)
	if errors.Is(err, reqerrors.ErrUnsupportedContentType) {
		log.Debug("no serializer for content type, sending raw text", zap.String("content_type", contentType))
		if raw, ok := value.([]byte); ok {
			return &Body{ContentType: contentType, Data: append([]byte(nil), raw...)}, nil
		}
		return &Body{ContentType: contentType, Data: []byte(formatScalar(value))}, nil
	}
	return body, err
}

// selectMedia returns the media type matching want, else the first one.
func selectMedia(content []spec.MediaType, want string) spec.MediaType {
	if want != "" {
		wantType := normalizeMediaType(want)
		for _, m := range content {
			if normalizeMediaType(m.ContentType) == wantType {
				return m
			}
		}
	}
	return content[0]
}
