package domain

import (
	"strings"
	"time"
)

type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "password"
	AuthMethodPasskey  AuthMethod = "passkey"
)

func (m AuthMethod) Valid() bool {
	return m == AuthMethodPassword || m == AuthMethodPasskey
}

const DefaultAvatarStyle = "initials"

type User struct {
	UserID       string             `json:"id" dynamodbav:"user_id"`
	Email        string             `json:"email" dynamodbav:"email"`
	AuthMethod   AuthMethod         `json:"auth_method" dynamodbav:"auth_method"`
	PasswordHash string             `json:"-" dynamodbav:"password_hash,omitempty"`
	Passkey      *PasskeyCredential `json:"-" dynamodbav:"passkey,omitempty"`
	TOTPSecret   string             `json:"-" dynamodbav:"totp_secret,omitempty"`
	TOTPEnabled  bool               `json:"totp_enabled" dynamodbav:"totp_enabled"`
	FirstName    string             `json:"first_name,omitempty" dynamodbav:"first_name,omitempty"`
	LastName     string             `json:"last_name,omitempty" dynamodbav:"last_name,omitempty"`
	Age          *int               `json:"age,omitempty" dynamodbav:"age,omitempty"`
	Birthday     string             `json:"birthday,omitempty" dynamodbav:"birthday,omitempty"` // YYYY-MM-DD
	AvatarStyle  string             `json:"avatar_style,omitempty" dynamodbav:"avatar_style,omitempty"`
	LastLoginAt  *time.Time         `json:"last_login_at,omitempty" dynamodbav:"last_login_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" dynamodbav:"updated_at"`
}

// NewUser builds a user with the given primary credential already applied.
func NewUser(id, email string, c Credential, now time.Time) *User {
	u := &User{
		UserID:      id,
		Email:       NormalizeEmail(email),
		AvatarStyle: DefaultAvatarStyle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	u.SetCredential(c)
	return u
}

// HasPasskey reports whether a passkey has been enrolled for a passkey account.
func (u *User) HasPasskey() bool {
	return u.AuthMethod == AuthMethodPasskey && u.Passkey != nil
}

// NormalizeEmail trims and lower-cases an address so it can serve as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Email           string     `json:"email" validate:"required,email,max=255"`
	AuthMethod      AuthMethod `json:"auth_method" validate:"required,oneof=password passkey"`
	Password        string     `json:"password" validate:"required_if=AuthMethod password,excluded_if=AuthMethod passkey,omitempty,password_policy"`
	PasswordConfirm string     `json:"password_confirm" validate:"required_if=AuthMethod password,excluded_if=AuthMethod passkey,omitempty,eqfield=Password"`
}

type PasswordLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code" validate:"omitempty,len=6,numeric"`
}

type PasswordChangeRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

type RecoveryConfirmRequest struct {
	Token           string     `json:"token" validate:"required"`
	NewAuthMethod   AuthMethod `json:"new_auth_method" validate:"required,oneof=password passkey"`
	Password        string     `json:"password" validate:"required_if=NewAuthMethod password,omitempty,password_policy"`
	PasswordConfirm string     `json:"password_confirm" validate:"required_if=NewAuthMethod password,omitempty,eqfield=Password"`
}

type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=50"`
	LastName    *string `json:"last_name" validate:"omitempty,max=50"`
	Age         *int    `json:"age" validate:"omitempty,min=0,max=150"`
	Birthday    *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	AvatarStyle *string `json:"avatar_style" validate:"omitempty,max=50"`
}
