package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest = errors.New("bad request")

	// Login and credential checks. InvalidCredentials never says which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongMethod        = errors.New("wrong authentication method")
	ErrTotpRequired       = errors.New("totp code required")

	// TOTP state machine.
	ErrInvalidCode = errors.New("invalid totp code")
	ErrNotEnrolled = errors.New("totp not enrolled")
	ErrNotEnabled  = errors.New("totp not enabled")

	// WebAuthn ceremonies.
	ErrAttestationInvalid = errors.New("passkey attestation invalid")
	ErrAssertionInvalid   = errors.New("passkey assertion invalid")
	ErrReplaySuspected    = errors.New("passkey signature counter did not advance")
	ErrChallengeExpired   = errors.New("challenge expired or not found")

	// Recovery tokens.
	ErrTokenExpired   = errors.New("recovery token expired")
	ErrTokenMalformed = errors.New("recovery token malformed")

	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")

	// Password management.
	ErrPolicyViolation     = errors.New("password does not meet policy")
	ErrSamePassword        = errors.New("new password must differ from the current one")
	ErrIncorrectCredential = errors.New("current password is incorrect")

	// Sessions.
	ErrInvalidOrExpired = errors.New("invalid or expired refresh token")
	ErrNotFound         = errors.New("not found")
)

// WrongMethodError names the method the account actually uses.
type WrongMethodError struct {
	Method AuthMethod
}

func (e *WrongMethodError) Error() string {
	return fmt.Sprintf("this account uses %s authentication", e.Method)
}

func (e *WrongMethodError) Is(target error) bool { return target == ErrWrongMethod }

// InfraError marks a failure of a backing store or external service.
// It is never an authentication outcome and maps to 503 at the boundary.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *InfraError) Unwrap() error { return e.Err }

// Infra wraps err as an InfraError unless it is nil or already one.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InfraError
	if errors.As(err, &ie) {
		return err
	}
	return &InfraError{Op: op, Err: err}
}

// IsInfra reports whether err carries an InfraError.
func IsInfra(err error) bool {
	var ie *InfraError
	return errors.As(err, &ie)
}
