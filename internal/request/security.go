package request

import (
	"encoding/base64"
	"strings"

	"github.com/mark3labs/swagger2har/internal/spec"
)

// Credential holds the secret material for one security scheme. Value is
// the token or API key; Username and Password serve http basic.
type Credential struct {
	Value    string `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty" toml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
}

func (c Credential) empty() bool {
	return c.Value == "" && c.Username == "" && c.Password == ""
}

// Credentials maps security scheme names to credentials.
type Credentials map[string]Credential

// Auth holds the request fragments a security requirement produces.
type Auth struct {
	Headers []Pair
	Query   []Pair
	Cookies []Pair

	// Requirement is the index of the applied requirement, -1 when none.
	Requirement int
	// Satisfied reports whether every scheme of the applied requirement had
	// a credential.
	Satisfied bool
}

// ApplySecurity picks the first requirement whose schemes are all declared
// and have credentials, and renders its artifacts. When none qualifies the
// first requirement is rendered with blank values. It never fails.
func ApplySecurity(schemes map[string]*spec.SecurityScheme, requirements []spec.SecurityRequirement, credentials Credentials) Auth {
	auth := Auth{Requirement: -1}
	if len(requirements) == 0 {
		return auth
	}

	chosen := 0
	satisfied := false
	for i, req := range requirements {
		if satisfiable(schemes, req, credentials) {
			chosen, satisfied = i, true
			break
		}
	}
	auth.Requirement = chosen
	auth.Satisfied = satisfied

	for _, sr := range requirements[chosen] {
		scheme, ok := schemes[sr.Scheme]
		if !ok {
			continue
		}
		cred := credentials[sr.Scheme]
		switch scheme.Type {
		case spec.APIKey:
			pair := Pair{Name: scheme.ParamName, Value: cred.Value}
			switch scheme.In {
			case spec.InQuery:
				auth.Query = append(auth.Query, pair)
			case spec.InCookie:
				auth.Cookies = append(auth.Cookies, pair)
			default:
				auth.Headers = append(auth.Headers, pair)
			}
		case spec.HTTPAuth:
			auth.Headers = append(auth.Headers, Pair{Name: "Authorization", Value: httpAuthorization(scheme.Scheme, cred)})
		case spec.OAuth2, spec.OpenIDConnect:
			auth.Headers = append(auth.Headers, Pair{Name: "Authorization", Value: "Bearer " + cred.Value})
		}
	}
	return auth
}

func satisfiable(schemes map[string]*spec.SecurityScheme, req spec.SecurityRequirement, credentials Credentials) bool {
	for _, sr := range req {
		if _, ok := schemes[sr.Scheme]; !ok {
			return false
		}
		cred, ok := credentials[sr.Scheme]
		if !ok || cred.empty() {
			return false
		}
	}
	return true
}

// httpAuthorization builds an Authorization value. Scheme names are
// case-insensitive.
func httpAuthorization(scheme string, cred Credential) string {
	switch strings.ToLower(scheme) {
	case "basic":
		userinfo := cred.Value
		if cred.Username != "" || cred.Password != "" {
			userinfo = cred.Username + ":" + cred.Password
		}
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(userinfo))
	case "bearer", "":
		return "Bearer " + cred.Value
	}
	return strings.ToUpper(scheme[:1]) + scheme[1:] + " " + cred.Value
}
