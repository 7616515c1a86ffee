package http

import (
	"context"
	"time"

	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/infrastructure/dynamo"
	"github.com/rohansroy/giterdone/internal/infrastructure/memory"
	"github.com/rohansroy/giterdone/internal/infrastructure/sns"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetCredential(ctx context.Context, userID string, c domain.Credential) error
	SetTOTP(ctx context.Context, userID, secret string, enabled bool) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	// AdvanceSignCount stores count only if it is above the stored counter
	// of the same credential, failing with ErrReplaySuspected otherwise.
	AdvanceSignCount(ctx context.Context, userID string, credentialID []byte, count uint32) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error)
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, newExpiry int64) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeByUser(ctx context.Context, userID string) error
}

// ChallengeRepository holds pending WebAuthn challenges. Take removes the
// challenge in the same step that reads it.
type ChallengeRepository interface {
	Put(ctx context.Context, c *domain.Challenge) error
	Take(ctx context.Context, key string) (*domain.Challenge, error)
}

// RecoveryNotifier delivers recovery links out of band.
type RecoveryNotifier interface {
	NotifyRecovery(ctx context.Context, email, recoveryURL string) error
}

var (
	_ UserRepository      = (*dynamo.UserRepo)(nil)
	_ UserRepository      = (*memory.UserStore)(nil)
	_ SessionRepository   = (*dynamo.SessionRepo)(nil)
	_ SessionRepository   = (*memory.SessionStore)(nil)
	_ ChallengeRepository = (*dynamo.ChallengeRepo)(nil)
	_ ChallengeRepository = (*memory.ChallengeStore)(nil)
	_ RecoveryNotifier    = (*sns.RecoveryPublisher)(nil)
)
