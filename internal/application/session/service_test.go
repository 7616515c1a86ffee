package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohansroy/giterdone/internal/domain"
	pkgtoken "github.com/rohansroy/giterdone/internal/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error) {
	args := m.Called(ctx, hash)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) Rotate(ctx context.Context, sessionID, oldHash, newHash string, newExpiry int64) error {
	return m.Called(ctx, sessionID, oldHash, newHash, newExpiry).Error(0)
}
func (m *mockSessionStore) Revoke(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockSessionStore) RevokeByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, sessionID, authMethod string) (string, error) {
	args := m.Called(userID, sessionID, authMethod)
	return args.String(0), args.Error(1)
}

// --- helpers ---

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(sessions *mockSessionStore, users *mockUserStore, signer *mockJWTSigner) Service {
	return NewService(ServiceDeps{
		SessionRepo: sessions,
		UserRepo:    users,
		JWTProvider: signer,
		RefreshTTL:  7 * 24 * time.Hour,
		Now:         func() time.Time { return fixedNow },
	})
}

// --- tests ---

func TestIssue_StoresOnlyHash(t *testing.T) {
	sessions, users, signer := new(mockSessionStore), new(mockUserStore), new(mockJWTSigner)
	svc := newTestService(sessions, users, signer)
	u := &domain.User{UserID: "u1", AuthMethod: domain.AuthMethodPassword}

	var stored *domain.Session
	sessions.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Session) }).Return(nil)
	signer.On("Sign", "u1", mock.Anything, "password").Return("access-jwt", nil)

	tokens, err := svc.Issue(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "access-jwt", tokens.Access)
	assert.Len(t, tokens.Refresh, 64)
	assert.Equal(t, pkgtoken.Hash(tokens.Refresh), stored.RefreshTokenHash)
	assert.NotEqual(t, tokens.Refresh, stored.RefreshTokenHash)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour).Unix(), stored.RefreshExpiresAt)
	assert.True(t, stored.Enable)
}

func TestRefresh_Rotates(t *testing.T) {
	sessions, users, signer := new(mockSessionStore), new(mockUserStore), new(mockJWTSigner)
	svc := newTestService(sessions, users, signer)
	oldHash := pkgtoken.Hash("old-refresh")

	sessions.On("GetByRefreshHash", mock.Anything, oldHash).Return(&domain.Session{
		SessionID: "s1", UserID: "u1", RefreshTokenHash: oldHash, RefreshExpiresAt: fixedNow.Add(time.Hour).Unix(), Enable: true,
	}, nil)
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", AuthMethod: domain.AuthMethodPasskey}, nil)
	sessions.On("Rotate", mock.Anything, "s1", oldHash, mock.AnythingOfType("string"), fixedNow.Add(7*24*time.Hour).Unix()).Return(nil)
	signer.On("Sign", "u1", "s1", "passkey").Return("new-access", nil)

	tokens, err := svc.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.Access)
	assert.NotEqual(t, "old-refresh", tokens.Refresh)
	sessions.AssertExpectations(t)
}

func TestRefresh_Failures(t *testing.T) {
	hash := pkgtoken.Hash("rt")
	live := &domain.Session{SessionID: "s1", UserID: "u1", RefreshExpiresAt: fixedNow.Add(time.Hour).Unix(), Enable: true}

	t.Run("unknown", func(t *testing.T) {
		sessions := new(mockSessionStore)
		svc := newTestService(sessions, new(mockUserStore), new(mockJWTSigner))
		sessions.On("GetByRefreshHash", mock.Anything, hash).Return(nil, domain.ErrNotFound)
		_, err := svc.Refresh(context.Background(), "rt")
		assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	})

	t.Run("expired", func(t *testing.T) {
		sessions := new(mockSessionStore)
		svc := newTestService(sessions, new(mockUserStore), new(mockJWTSigner))
		sessions.On("GetByRefreshHash", mock.Anything, hash).Return(&domain.Session{SessionID: "s1", RefreshExpiresAt: fixedNow.Unix()}, nil)
		_, err := svc.Refresh(context.Background(), "rt")
		assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	})

	t.Run("lost rotation race", func(t *testing.T) {
		sessions, users := new(mockSessionStore), new(mockUserStore)
		svc := newTestService(sessions, users, new(mockJWTSigner))
		sessions.On("GetByRefreshHash", mock.Anything, hash).Return(live, nil)
		users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
		sessions.On("Rotate", mock.Anything, "s1", hash, mock.Anything, mock.Anything).Return(domain.ErrInvalidOrExpired)
		_, err := svc.Refresh(context.Background(), "rt")
		assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	})

	t.Run("user deleted", func(t *testing.T) {
		sessions, users := new(mockSessionStore), new(mockUserStore)
		svc := newTestService(sessions, users, new(mockJWTSigner))
		sessions.On("GetByRefreshHash", mock.Anything, hash).Return(live, nil)
		users.On("Get", mock.Anything, "u1").Return(nil, domain.ErrUserNotFound)
		_, err := svc.Refresh(context.Background(), "rt")
		assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	})

	t.Run("store outage", func(t *testing.T) {
		sessions := new(mockSessionStore)
		svc := newTestService(sessions, new(mockUserStore), new(mockJWTSigner))
		sessions.On("GetByRefreshHash", mock.Anything, hash).Return(nil, domain.Infra("sessions.get", errors.New("timeout")))
		_, err := svc.Refresh(context.Background(), "rt")
		assert.True(t, domain.IsInfra(err))
		assert.NotErrorIs(t, err, domain.ErrInvalidOrExpired)
	})
}

func TestRevoke(t *testing.T) {
	sessions := new(mockSessionStore)
	svc := newTestService(sessions, new(mockUserStore), new(mockJWTSigner))
	sessions.On("Revoke", mock.Anything, "s1").Return(nil)
	sessions.On("RevokeByUser", mock.Anything, "u1").Return(nil)

	require.NoError(t, svc.Revoke(context.Background(), "s1"))
	require.NoError(t, svc.RevokeUser(context.Background(), "u1"))
	sessions.AssertExpectations(t)
}
