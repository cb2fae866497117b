package request

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mark3labs/swagger2har/internal/spec"
)

func testSchemes() map[string]*spec.SecurityScheme {
	return map[string]*spec.SecurityScheme{
		"bearer":  {Name: "bearer", Type: spec.HTTPAuth, Scheme: "bearer"},
		"basic":   {Name: "basic", Type: spec.HTTPAuth, Scheme: "basic"},
		"digest":  {Name: "digest", Type: spec.HTTPAuth, Scheme: "digest"},
		"Basic":   {Name: "Basic", Type: spec.HTTPAuth, Scheme: "Basic"},
		"BEARER":  {Name: "BEARER", Type: spec.HTTPAuth, Scheme: "BEARER"},
		"header":  {Name: "header", Type: spec.APIKey, In: spec.InHeader, ParamName: "X-API-Key"},
		"query":   {Name: "query", Type: spec.APIKey, In: spec.InQuery, ParamName: "api_key"},
		"cookie":  {Name: "cookie", Type: spec.APIKey, In: spec.InCookie, ParamName: "sid"},
		"oauth":   {Name: "oauth", Type: spec.OAuth2},
		"openid":  {Name: "openid", Type: spec.OpenIDConnect, OpenIDConnectURL: "https://id.example.com/.well-known/openid-configuration"},
		"unknown": {Name: "unknown", Type: "mutualTLS"},
	}
}

func requirement(names ...string) spec.SecurityRequirement {
	req := spec.SecurityRequirement{}
	for _, n := range names {
		req = append(req, spec.SchemeRequirement{Scheme: n})
	}
	return req
}

func TestApplySecurity_Variants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scheme string
		cred   Credential
		want   Auth
	}{
		{
			name:   "bearer",
			scheme: "bearer",
			cred:   Credential{Value: "abc123"},
			want:   Auth{Headers: []Pair{{"Authorization", "Bearer abc123"}}, Satisfied: true},
		},
		{
			name:   "basic from username and password",
			scheme: "basic",
			cred:   Credential{Username: "user", Password: "pass"},
			want:   Auth{Headers: []Pair{{"Authorization", "Basic dXNlcjpwYXNz"}}, Satisfied: true},
		},
		{
			name:   "basic from value",
			scheme: "basic",
			cred:   Credential{Value: "user:pass"},
			want:   Auth{Headers: []Pair{{"Authorization", "Basic dXNlcjpwYXNz"}}, Satisfied: true},
		},
		{
			name:   "basic scheme name is case-insensitive",
			scheme: "Basic",
			cred:   Credential{Username: "u", Password: "p"},
			want:   Auth{Headers: []Pair{{"Authorization", "Basic dTpw"}}, Satisfied: true},
		},
		{
			name:   "bearer scheme name is case-insensitive",
			scheme: "BEARER",
			cred:   Credential{Value: "tok"},
			want:   Auth{Headers: []Pair{{"Authorization", "Bearer tok"}}, Satisfied: true},
		},
		{
			name:   "other http scheme",
			scheme: "digest",
			cred:   Credential{Value: "tok"},
			want:   Auth{Headers: []Pair{{"Authorization", "Digest tok"}}, Satisfied: true},
		},
		{
			name:   "api key header",
			scheme: "header",
			cred:   Credential{Value: "k"},
			want:   Auth{Headers: []Pair{{"X-API-Key", "k"}}, Satisfied: true},
		},
		{
			name:   "api key query",
			scheme: "query",
			cred:   Credential{Value: "k"},
			want:   Auth{Query: []Pair{{"api_key", "k"}}, Satisfied: true},
		},
		{
			name:   "api key cookie",
			scheme: "cookie",
			cred:   Credential{Value: "k"},
			want:   Auth{Cookies: []Pair{{"sid", "k"}}, Satisfied: true},
		},
		{
			name:   "oauth2",
			scheme: "oauth",
			cred:   Credential{Value: "tok"},
			want:   Auth{Headers: []Pair{{"Authorization", "Bearer tok"}}, Satisfied: true},
		},
		{
			name:   "openIdConnect",
			scheme: "openid",
			cred:   Credential{Value: "tok"},
			want:   Auth{Headers: []Pair{{"Authorization", "Bearer tok"}}, Satisfied: true},
		},
		{
			name:   "unknown type renders nothing",
			scheme: "unknown",
			cred:   Credential{Value: "x"},
			want:   Auth{Satisfied: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ApplySecurity(testSchemes(), []spec.SecurityRequirement{requirement(tt.scheme)}, Credentials{tt.scheme: tt.cred})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplySecurity_Selection(t *testing.T) {
	t.Parallel()

	schemes := testSchemes()

	t.Run("no requirements", func(t *testing.T) {
		t.Parallel()
		got := ApplySecurity(schemes, nil, Credentials{"bearer": {Value: "x"}})
		assert.Equal(t, Auth{Requirement: -1}, got)
	})

	t.Run("first satisfiable alternative wins", func(t *testing.T) {
		t.Parallel()
		reqs := []spec.SecurityRequirement{requirement("header"), requirement("bearer")}
		got := ApplySecurity(schemes, reqs, Credentials{"bearer": {Value: "t"}})
		assert.Equal(t, 1, got.Requirement)
		assert.True(t, got.Satisfied)
		assert.Equal(t, []Pair{{"Authorization", "Bearer t"}}, got.Headers)
	})

	t.Run("all schemes of a requirement are applied", func(t *testing.T) {
		t.Parallel()
		reqs := []spec.SecurityRequirement{requirement("bearer", "query")}
		got := ApplySecurity(schemes, reqs, Credentials{"bearer": {Value: "t"}, "query": {Value: "k"}})
		assert.True(t, got.Satisfied)
		assert.Equal(t, []Pair{{"Authorization", "Bearer t"}}, got.Headers)
		assert.Equal(t, []Pair{{"api_key", "k"}}, got.Query)
	})

	t.Run("partial credentials fall back to first requirement with blanks", func(t *testing.T) {
		t.Parallel()
		reqs := []spec.SecurityRequirement{requirement("header", "query"), requirement("bearer", "basic")}
		got := ApplySecurity(schemes, reqs, Credentials{"query": {Value: "k"}, "bearer": {Value: "t"}})
		assert.Equal(t, 0, got.Requirement)
		assert.False(t, got.Satisfied)
		assert.Equal(t, []Pair{{"X-API-Key", ""}}, got.Headers)
		assert.Equal(t, []Pair{{"api_key", "k"}}, got.Query)
	})

	t.Run("anonymous alternative is satisfied without credentials", func(t *testing.T) {
		t.Parallel()
		reqs := []spec.SecurityRequirement{requirement("bearer"), requirement()}
		got := ApplySecurity(schemes, reqs, nil)
		assert.Equal(t, Auth{Requirement: 1, Satisfied: true}, got)
	})

	t.Run("undeclared scheme is never satisfiable", func(t *testing.T) {
		t.Parallel()
		reqs := []spec.SecurityRequirement{requirement("missing"), requirement("bearer")}
		got := ApplySecurity(schemes, reqs, Credentials{"missing": {Value: "x"}, "bearer": {Value: "t"}})
		assert.Equal(t, 1, got.Requirement)
	})
}
