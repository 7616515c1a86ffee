package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassword_Accepts(t *testing.T) {
	for _, pw := range []string{"Secure123!", "New123!", "abcDEF12"} {
		assert.NoError(t, Password(pw), pw)
	}
}

func TestPassword_Rejects(t *testing.T) {
	cases := map[string]string{
		"short":    "Ab1!",
		"numeric":  "12345678901",
		"common":   "Password123",
		"classes":  "abcdefghij",
		"too long": "Aa1!" + string(make([]byte, 80)),
	}
	for name, pw := range cases {
		assert.Error(t, Password(pw), name)
	}
}

type registerLike struct {
	Method   string `validate:"required,oneof=password passkey"`
	Password string `validate:"required_if=Method password,excluded_if=Method passkey,omitempty,password_policy"`
	Confirm  string `validate:"required_if=Method password,excluded_if=Method passkey,omitempty,eqfield=Password"`
}

func TestStruct_PasswordPolicyTag(t *testing.T) {
	assert.NoError(t, Struct(registerLike{Method: "password", Password: "Secure123!", Confirm: "Secure123!"}))
	assert.ErrorContains(t, Struct(registerLike{Method: "password", Password: "weak", Confirm: "weak"}), "password_policy")
	assert.ErrorContains(t, Struct(registerLike{Method: "password", Password: "Secure123!", Confirm: "Other123!"}), "eqfield")
	assert.NoError(t, Struct(registerLike{Method: "passkey"}))
	assert.ErrorContains(t, Struct(registerLike{Method: "passkey", Password: "Secure123!"}), "excluded_if")
	assert.ErrorContains(t, Struct(registerLike{Method: "password"}), "required_if")
}
