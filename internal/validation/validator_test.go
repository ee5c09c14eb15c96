package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	Age      *int   `json:"age" validate:"omitempty,gte=18"`
}

func TestValidatorMessages(t *testing.T) {
	v := New()
	seventeen := 17

	cases := []struct {
		name string
		in   signup
		want string
	}{
		{"missing email", signup{Password: "secret1"}, "email is required"},
		{"bad email", signup{Email: "nope", Password: "secret1"}, "email must be a valid email address"},
		{"short password", signup{Email: "a@b.co", Password: "123"}, "password must be at least 6 characters"},
		{"role", signup{Email: "a@b.co", Password: "secret1", Role: "root"}, "role must be one of: user admin"},
		{"age", signup{Email: "a@b.co", Password: "secret1", Age: &seventeen}, "age must be at least 18"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.want, Message(err))
		})
	}

	assert.NoError(t, v.Validate(signup{Email: "a@b.co", Password: "secret1"}))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
