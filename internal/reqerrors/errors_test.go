package reqerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaResolutionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *SchemaResolutionError
		want string
	}{
		{name: "missing", err: &SchemaResolutionError{Ref: "#/components/schemas/Pet"}, want: "unresolved schema reference: #/components/schemas/Pet"},
		{name: "circular", err: &SchemaResolutionError{Ref: "#/a", Circular: true}, want: "circular schema reference: #/a"},
		{name: "message", err: &SchemaResolutionError{Ref: "#/b", Message: "no target"}, want: "unresolved schema reference: #/b: no target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
			wrapped := fmt.Errorf("generate: %w", tt.err)
			assert.True(t, errors.Is(wrapped, ErrSchemaResolution))
			assert.False(t, errors.Is(wrapped, ErrInvalidServerVariable))

			var target *SchemaResolutionError
			assert.True(t, errors.As(wrapped, &target))
			assert.Equal(t, tt.err.Ref, target.Ref)
		})
	}
}

func TestInvalidServerVariableError(t *testing.T) {
	t.Parallel()

	err := &InvalidServerVariableError{Variable: "region", Value: "mars", Allowed: []string{"eu", "us"}}
	assert.Equal(t, `invalid server variable "region": value "mars" (allowed: eu, us)`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidServerVariable)

	bare := &InvalidServerVariableError{Variable: "v", Value: "x"}
	assert.Equal(t, `invalid server variable "v": value "x"`, bare.Error())
}

func TestUnsupportedContentTypeError(t *testing.T) {
	t.Parallel()

	err := &UnsupportedContentTypeError{ContentType: "application/x-custom"}
	assert.Equal(t, "unsupported content type: application/x-custom", err.Error())
	assert.ErrorIs(t, fmt.Errorf("body: %w", err), ErrUnsupportedContentType)
	assert.NotErrorIs(t, err, ErrSchemaResolution)
}
