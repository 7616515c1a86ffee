package recovery

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(c *clock) Service {
	return NewService(ServiceDeps{Secret: "test-secret", MaxAge: time.Hour, Now: c.now})
}

func TestRedeem_Window(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(c)
	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	c.t = c.t.Add(59 * time.Minute)
	userID, err := svc.Redeem(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	// Redeeming does not consume the token.
	_, err = svc.Redeem(tok)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Minute)
	_, err = svc.Redeem(tok)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestRedeem_Malformed(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newTestService(c)
	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	other := NewService(ServiceDeps{Secret: "other-secret", Now: c.now})
	_, err = other.Redeem(tok)
	assert.ErrorIs(t, err, domain.ErrTokenMalformed)

	for _, bad := range []string{"", "garbage", tok[:len(tok)-2], strings.Replace(tok, ".", "..", 1)} {
		_, err := svc.Redeem(bad)
		assert.ErrorIs(t, err, domain.ErrTokenMalformed, bad)
	}
}

func TestRedeem_RejectsOtherTokenKinds(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newTestService(c)

	// Same secret, no typ claim.
	plain, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "u1",
		IssuedAt: jwt.NewNumericDate(c.t),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.Redeem(plain)
	assert.ErrorIs(t, err, domain.ErrTokenMalformed)

	// Issued in the future.
	future, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Type:             tokenType,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", IssuedAt: jwt.NewNumericDate(c.t.Add(time.Hour))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.Redeem(future)
	assert.ErrorIs(t, err, domain.ErrTokenMalformed)
}
