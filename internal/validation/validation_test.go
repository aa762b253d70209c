package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signUp struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Role     string `validate:"omitempty,oneof=customer admin"`
}

type named struct {
	Name string `validate:"required,notblank"`
}

func TestFields(t *testing.T) {
	err := Struct(signUp{Email: "nope", Password: "short", Role: "root"})
	require.Error(t, err)

	fields := Fields(err)
	assert.Equal(t, "email must be a valid email", fields["email"])
	assert.Equal(t, "password must be at least 8 characters", fields["password"])
	assert.Equal(t, "role must be one of customer admin", fields["role"])
}

func TestFields_Valid(t *testing.T) {
	assert.NoError(t, Struct(signUp{Email: "a@b.co", Password: "long enough"}))
	assert.Nil(t, Fields(errors.New("boom")))
}

func TestFields_NotBlank(t *testing.T) {
	err := Struct(named{Name: "   "})
	require.Error(t, err)
	assert.Equal(t, "name is required", Fields(err)["name"])
}
