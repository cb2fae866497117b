// Package reqerrors holds the error taxonomy shared by the example generator
// and the request synthesizer.
//
// Each error type matches a sentinel through errors.Is, so callers can branch
// on the category without type assertions:
//
//	req, err := synth.Synthesize(op, server, vars, creds)
//	if errors.Is(err, reqerrors.ErrSchemaResolution) {
//	    // render a placeholder instead
//	}
package reqerrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaResolution indicates a $ref that could not be resolved.
	ErrSchemaResolution = errors.New("schema resolution error")

	// ErrInvalidServerVariable indicates a server variable override outside
	// the declared enum with no default to fall back on.
	ErrInvalidServerVariable = errors.New("invalid server variable")

	// ErrUnsupportedContentType indicates a body content type with no known
	// serializer.
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// SchemaResolutionError reports a $ref with no target, or a chain of refs
// that only points back at itself.
type SchemaResolutionError struct {
	// Ref is the reference string that failed to resolve
	Ref string
	// Circular is true when the ref chain loops without reaching a schema
	Circular bool
	// Message provides additional context
	Message string
}

// Error returns a human-readable error message.
func (e *SchemaResolutionError) Error() string {
	msg := "unresolved schema reference"
	if e.Circular {
		msg = "circular schema reference"
	}
	if e.Ref != "" {
		msg += ": " + e.Ref
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *SchemaResolutionError) Is(target error) bool {
	return target == ErrSchemaResolution
}

// InvalidServerVariableError reports an override value that is not part of
// the variable's enum when the server declares no default.
type InvalidServerVariableError struct {
	Variable string
	Value    string
	Allowed  []string
}

// Error returns a human-readable error message.
func (e *InvalidServerVariableError) Error() string {
	msg := fmt.Sprintf("invalid server variable %q: value %q", e.Variable, e.Value)
	if len(e.Allowed) > 0 {
		msg += " (allowed: " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *InvalidServerVariableError) Is(target error) bool {
	return target == ErrInvalidServerVariable
}

// UnsupportedContentTypeError reports a media type without a serializer.
type UnsupportedContentTypeError struct {
	ContentType string
}

// Error returns a human-readable error message.
func (e *UnsupportedContentTypeError) Error() string {
	return "unsupported content type: " + e.ContentType
}

// Is reports whether target matches this error type.
func (e *UnsupportedContentTypeError) Is(target error) bool {
	return target == ErrUnsupportedContentType
}
