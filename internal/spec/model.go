package spec

import "strings"

// Internal model consumed by the example generator, the request synthesizer
// and the emitters.

type HttpMethod string

const (
	GET     HttpMethod = "GET"
	POST    HttpMethod = "POST"
	PUT     HttpMethod = "PUT"
	DELETE  HttpMethod = "DELETE"
	PATCH   HttpMethod = "PATCH"
	HEAD    HttpMethod = "HEAD"
	OPTIONS HttpMethod = "OPTIONS"
	TRACE   HttpMethod = "TRACE"
)

// ParseMethod maps a case-insensitive method name onto HttpMethod.
func ParseMethod(s string) (HttpMethod, bool) {
	m := HttpMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE:
		return m, true
	}
	return "", false
}

type ParameterLocation string

const (
	InPath   ParameterLocation = "path"
	InQuery  ParameterLocation = "query"
	InHeader ParameterLocation = "header"
	InCookie ParameterLocation = "cookie"
)

type Document struct {
	Title       string
	Version     string
	Description string
	Servers     []Server
	Tags        []string
	Operations  []Operation

	// Schemas holds component schemas by name; SchemaNames lists them in
	// declaration order.
	Schemas         map[string]*Schema
	SchemaNames     []string
	SecuritySchemes map[string]*SecurityScheme
}

// FindOperation looks an operation up by operationId or by "METHOD /path".
func (d *Document) FindOperation(key string) (*Operation, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	for i := range d.Operations {
		if d.Operations[i].OperationID != "" && d.Operations[i].OperationID == key {
			return &d.Operations[i], true
		}
	}
	method, path, ok := strings.Cut(key, " ")
	if !ok {
		return nil, false
	}
	m, ok := ParseMethod(method)
	if !ok {
		return nil, false
	}
	path = strings.TrimSpace(path)
	for i := range d.Operations {
		if d.Operations[i].Method == m && d.Operations[i].Path == path {
			return &d.Operations[i], true
		}
	}
	return nil, false
}

type Server struct {
	URL         string
	Description string
	Variables   map[string]ServerVariable
}

type ServerVariable struct {
	Default     string
	Enum        []string
	Description string
}

type Operation struct {
	ID          string // METHOD path
	OperationID string
	Method      HttpMethod
	Path        string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	Parameters  []Parameter
	RequestBody *RequestBody

	// Security is nil when no requirement applies. Alternatives are
	// evaluated in order.
	Security []SecurityRequirement
	Servers  []Server
}

type Parameter struct {
	Name          string
	In            ParameterLocation
	Required      bool
	Style         string
	Explode       *bool
	AllowReserved bool
	Schema        *Schema
	Example       any
	HasExample    bool
	Description   string
}

type RequestBody struct {
	Required bool
	Content  []MediaType
}

type MediaType struct {
	ContentType string
	Schema      *Schema
	// Example holds the media-level example when HasExample is set.
	Example    any
	HasExample bool
}

// SecurityRequirement is one alternative: every listed scheme must be
// satisfied. An empty requirement allows anonymous access.
type SecurityRequirement []SchemeRequirement

type SchemeRequirement struct {
	Scheme string
	Scopes []string
}

type SecuritySchemeType string

const (
	APIKey        SecuritySchemeType = "apiKey"
	HTTPAuth      SecuritySchemeType = "http"
	OAuth2        SecuritySchemeType = "oauth2"
	OpenIDConnect SecuritySchemeType = "openIdConnect"
)

type SecurityScheme struct {
	Name        string
	Type        SecuritySchemeType
	Description string

	// apiKey
	In        ParameterLocation
	ParamName string

	// http
	Scheme       string
	BearerFormat string

	// oauth2
	Flows []OAuthFlow

	// openIdConnect
	OpenIDConnectURL string
}

type OAuthFlow struct {
	Kind             string // implicit|password|clientCredentials|authorizationCode
	AuthorizationURL string
	TokenURL         string
	RefreshURL       string
	Scopes           map[string]string
}
