package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/pkg/id"
	pkgtoken "github.com/rohansroy/giterdone/internal/pkg/token"
)

// Service mints and rotates bearer token pairs. Each pair is backed by a
// stored session; the refresh token itself is never persisted.
type Service interface {
	Issue(ctx context.Context, u *domain.User) (*domain.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeUser(ctx context.Context, userID string) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	GetByRefreshHash(ctx context.Context, hash string) (*domain.Session, error)
	Rotate(ctx context.Context, sessionID, oldHash, newHash string, newExpiry int64) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeByUser(ctx context.Context, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type jwtSigner interface {
	Sign(userID, sessionID, authMethod string) (string, error)
}

type service struct {
	sessionRepo sessionStore
	userRepo    userStore
	jwtProvider jwtSigner
	refreshTTL  time.Duration
	now         func() time.Time
}

type ServiceDeps struct {
	SessionRepo sessionStore
	UserRepo    userStore
	JWTProvider jwtSigner
	RefreshTTL  time.Duration
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		sessionRepo: deps.SessionRepo,
		userRepo:    deps.UserRepo,
		jwtProvider: deps.JWTProvider,
		refreshTTL:  deps.RefreshTTL,
		now:         now,
	}
}

func (s *service) Issue(ctx context.Context, u *domain.User) (*domain.Tokens, error) {
	refresh, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		RefreshTokenHash: pkgtoken.Hash(refresh),
		RefreshExpiresAt: now.Add(s.refreshTTL).Unix(),
		Enable:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	access, err := s.jwtProvider.Sign(u.UserID, sess.SessionID, string(u.AuthMethod))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &domain.Tokens{Access: access, Refresh: refresh}, nil
}

// Refresh accepts a refresh token once. The old token stops working the
// moment the rotation is written.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.Tokens, error) {
	oldHash := pkgtoken.Hash(refreshToken)
	sess, err := s.sessionRepo.GetByRefreshHash(ctx, oldHash)
	if err != nil {
		return nil, invalid(err)
	}
	now := s.now().UTC()
	if sess.RefreshExpiresAt <= now.Unix() {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrInvalidOrExpired)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, invalid(err)
	}
	next, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Rotate(ctx, sess.SessionID, oldHash, pkgtoken.Hash(next), now.Add(s.refreshTTL).Unix()); err != nil {
		return nil, invalid(err)
	}
	access, err := s.jwtProvider.Sign(u.UserID, sess.SessionID, string(u.AuthMethod))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &domain.Tokens{Access: access, Refresh: next}, nil
}

func (s *service) Revoke(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Revoke(ctx, sessionID)
}

func (s *service) RevokeUser(ctx context.Context, userID string) error {
	return s.sessionRepo.RevokeByUser(ctx, userID)
}

// invalid collapses lookup failures into ErrInvalidOrExpired but lets
// store outages through.
func invalid(err error) error {
	if domain.IsInfra(err) || errors.Is(err, domain.ErrInvalidOrExpired) {
		return err
	}
	return fmt.Errorf("%v: %w", err, domain.ErrInvalidOrExpired)
}
