package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path, URL or "-" for stdin
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// StdinInput is the input name that reads the document from standard input.
const StdinInput = "-"

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowFileRefs permits file refs when the root document is not a local
	// file. Local roots always may reference sibling files.
	AllowFileRefs bool
	Logger        *zap.Logger
	// Stdin is read when the input is StdinInput.
	Stdin io.Reader
}

func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
		Logger:      zap.NewNop(),
		Stdin:       os.Stdin,
	}
}

type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithAllowFileRefs(allow bool) Option    { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithStdin(r io.Reader) Option           { return func(s *Settings) { s.Stdin = r } }
func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

// source is a document read once from its origin.
type source struct {
	raw      []byte
	location string
	// base resolves relative refs; nil for stdin.
	base   *url.URL
	remote bool
}

// Load reads and validates an OpenAPI v3 document and returns it with the
// raw bytes it was parsed from. Swagger 2.0 input is converted to v3 and
// the raw bytes are nil, since they no longer describe the result.
//
// input is a filesystem path, an http/https URL or StdinInput. file://
// URLs are rejected.
func Load(ctx context.Context, input string, opts ...Option) (*openapi3.T, []byte, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	src, err := readSource(ctx, strings.TrimSpace(input), settings)
	if err != nil {
		return nil, nil, err
	}
	log := settings.Logger.With(zap.String("location", src.location))

	version, err := detectVersion(src.raw)
	if err != nil {
		return nil, nil, &SpecError{Code: ParseError, Message: err.Error(), Location: src.location, Cause: err}
	}
	log.Debug("document read", zap.Int("version", version), zap.Int("bytes", len(src.raw)))

	var doc *openapi3.T
	raw := src.raw
	switch version {
	case 3:
		loader := newRefLoader(ctx, settings, src)
		if src.base != nil {
			doc, err = loader.LoadFromDataWithPath(src.raw, src.base)
		} else {
			doc, err = loader.LoadFromData(src.raw)
		}
		if err != nil {
			return nil, nil, classify(err, src.location)
		}
	case 2:
		doc, err = convertV2(ctx, src, settings, log)
		if err != nil {
			return nil, nil, err
		}
		raw = nil
	}

	if err := doc.Validate(ctx); err != nil {
		if !tolerable(err) {
			return nil, nil, classify(err, src.location)
		}
		log.Warn("proceeding despite validation error", zap.Error(err))
	}
	return doc, raw, nil
}

func readSource(ctx context.Context, input string, settings Settings) (*source, error) {
	if input == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}
	if input == StdinInput {
		if settings.Stdin == nil {
			return nil, &SpecError{Code: InputError, Message: "spec: no stdin available", Location: input}
		}
		raw, err := io.ReadAll(settings.Stdin)
		if err != nil {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read stdin: %v", err), Location: input, Cause: err}
		}
		return &source{raw: raw, location: input}, nil
	}

	if u, err := url.Parse(input); err == nil && u.Scheme != "" && u.Host != "" {
		switch scheme := strings.ToLower(u.Scheme); scheme {
		case "http", "https":
		case "file":
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		default:
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		client := &http.Client{Timeout: settings.HTTPTimeout}
		raw, err := fetch(ctx, client, input, settings)
		if err != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		return &source{raw: raw, location: input, base: u, remote: true}, nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}
	return &source{raw: raw, location: abs, base: &url.URL{Path: filepath.ToSlash(abs)}}, nil
}

// newRefLoader returns a kin-openapi loader whose external refs are read
// with the same client and policy as the root document.
func newRefLoader(ctx context.Context, settings Settings, src *source) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || (src.base != nil && !src.remote)
	loader.ReadFromURIFunc = func(_ *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri)
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(filepath.FromSlash(path))
		case "http", "https":
			return fetch(ctx, client, uri.String(), Settings{MaxRetries: 1})
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectVersion returns 3 for OpenAPI v3 and 2 for Swagger 2.0.
func detectVersion(data []byte) (int, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	var root *yaml.Node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = deref(doc.Content[0])
	}
	if v := scalarValue(mappingValue(root, "openapi")); strings.HasPrefix(strings.TrimSpace(v), "3.") {
		return 3, nil
	}
	if v := scalarValue(mappingValue(root, "swagger")); strings.HasPrefix(strings.TrimSpace(v), "2.") {
		return 2, nil
	}
	return 0, errors.New("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func convertV2(ctx context.Context, src *source, settings Settings, log *zap.Logger) (*openapi3.T, error) {
	raw := src.raw
	if fixed, changed, err := fixupV2(raw); err != nil {
		log.Debug("swagger 2.0 fixup skipped", zap.Error(err))
	} else if changed {
		log.Debug("swagger 2.0 operations rewritten before conversion")
		raw = fixed
	}

	var v2 openapi2.T
	if err := yaml.Unmarshal(raw, &v2); err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: src.location, Cause: err}
	}
	doc, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: src.location, Cause: err}
	}
	if err := newRefLoader(ctx, settings, src).ResolveRefsIn(doc, src.base); err != nil {
		log.Warn("resolve refs after conversion", zap.Error(err))
	}
	return doc, nil
}

// errTransient marks fetch failures worth retrying.
var errTransient = errors.New("transient")

// fetch GETs rawURL, retrying network errors, 429 and 5xx responses with
// exponential backoff.
func fetch(ctx context.Context, client *http.Client, rawURL string, settings Settings) ([]byte, error) {
	attempts := max(settings.MaxRetries, 1)
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		body, err := fetchOnce(ctx, client, rawURL)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, errTransient) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func fetchOnce(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", errTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return io.ReadAll(resp.Body)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: http %d", errTransient, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// classify wraps a kin-openapi load or validation error.
func classify(err error, location string) error {
	code := ValidationError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") || strings.Contains(lower, "unmarshal") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointerOf(err), Cause: err}
}

var pointerRe = regexp.MustCompile(`#/[^\s'"]+`)

func pointerOf(err error) string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		return pointerOf(multi[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	return pointerRe.FindString(err.Error())
}

// tolerable reports validation errors a best-effort build can live with:
// unresolved refs (surfaced later per schema) and JSON Schema keywords
// kin-openapi keeps as extensions (const, examples, prefixItems).
func tolerable(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "extra sibling fields")
}
