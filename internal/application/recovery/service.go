// Package recovery issues and redeems stateless account-recovery tokens.
// A token is an HS256 JWT bound to a user id and its issue time; it stays
// valid for MaxAge and there is no revocation list.
package recovery

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohansroy/giterdone/internal/domain"
)

const tokenType = "recovery"

type Service interface {
	Issue(userID string) (string, error)
	// Redeem returns the user id the token was issued for.
	Redeem(token string) (string, error)
}

type claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type service struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

type ServiceDeps struct {
	Secret string
	MaxAge time.Duration
	Now    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	maxAge := deps.MaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &service{secret: []byte(deps.Secret), maxAge: maxAge, now: now}
}

func (s *service) Issue(userID string) (string, error) {
	c := claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign recovery token: %w", err)
	}
	return signed, nil
}

func (s *service) Redeem(tokenStr string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("recovery token: %v: %w", err, domain.ErrTokenMalformed)
	}
	if c.Type != tokenType || c.Subject == "" || c.IssuedAt == nil {
		return "", fmt.Errorf("recovery token claims: %w", domain.ErrTokenMalformed)
	}
	if s.now().Sub(c.IssuedAt.Time) > s.maxAge {
		return "", fmt.Errorf("recovery token issued %s: %w", c.IssuedAt.Time.Format(time.RFC3339), domain.ErrTokenExpired)
	}
	return c.Subject, nil
}
