package request

import (
	"regexp"
	"slices"

	"github.com/mark3labs/swagger2har/internal/reqerrors"
	"github.com/mark3labs/swagger2har/internal/spec"
)

var serverVariablePattern = regexp.MustCompile(`\{([^{}]+)\}`)

// BuildBaseURL expands the {name} placeholders of server.URL.
//
// An override is used when the variable declares no enum or the override
// is one of its values. Otherwise the declared default applies, and an
// undeclared variable without an override expands to the empty string.
// An override outside the enum of a variable without a default is an
// InvalidServerVariableError. A nil server yields "".
func BuildBaseURL(server *spec.Server, overrides map[string]string) (string, error) {
	if server == nil {
		return "", nil
	}
	var firstErr error
	out := serverVariablePattern.ReplaceAllStringFunc(server.URL, func(match string) string {
		name := match[1 : len(match)-1]
		decl, declared := server.Variables[name]
		if v, ok := overrides[name]; ok {
			if !declared || len(decl.Enum) == 0 || slices.Contains(decl.Enum, v) {
				return v
			}
			if decl.Default == "" {
				if firstErr == nil {
					firstErr = &reqerrors.InvalidServerVariableError{Variable: name, Value: v, Allowed: decl.Enum}
				}
				return ""
			}
		}
		return decl.Default
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
