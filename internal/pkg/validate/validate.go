package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom tags are registered in
// init before the first call to Struct.
var v = validator.New()

func init() {
	if err := v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return Password(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {}, "p@ssw0rd": {},
	"qwerty123": {}, "qwerty": {}, "letmein": {}, "welcome1": {}, "abc123": {},
	"iloveyou": {}, "admin123": {}, "monkey": {}, "dragon": {}, "123456": {},
	"12345678": {}, "123456789": {}, "football": {}, "baseball": {}, "sunshine": {},
}

// Password checks plaintext against the strength policy: length bounds,
// at least three character classes, not purely numeric, not a common password.
func Password(pw string) error {
	if len(pw) < minPasswordLen || len(pw) > maxPasswordLen {
		return fmt.Errorf("password must be %d to %d characters", minPasswordLen, maxPasswordLen)
	}
	if _, common := commonPasswords[strings.ToLower(pw)]; common {
		return fmt.Errorf("password is too common")
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if digit && !lower && !upper && !symbol {
		return fmt.Errorf("password cannot be entirely numeric")
	}
	classes := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return fmt.Errorf("password must mix at least three of lowercase, uppercase, digits and symbols")
	}
	return nil
}
