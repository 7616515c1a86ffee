package password

import (
	"context"
	"fmt"

	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/rohansroy/giterdone/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches the user's password. It is
	// false for passkey accounts and for an empty hash.
	Verify(u *domain.User, plaintext string) bool
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetCredential(ctx context.Context, userID string, c domain.Credential) error
}

type service struct {
	repo userStore
	cost int
}

type ServiceDeps struct {
	UserRepo userStore
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func NewService(deps ServiceDeps) Service {
	cost := deps.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{repo: deps.UserRepo, cost: cost}
}

func (s *service) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *service) Verify(u *domain.User, plaintext string) bool {
	pw, ok := u.Credential().(domain.Password)
	if !ok || pw.Hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(pw.Hash), []byte(plaintext)) == nil
}

// ChangePassword persists nothing unless every check passes.
func (s *service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := u.Credential().(domain.Password); !ok {
		return fmt.Errorf("change password: %w", &domain.WrongMethodError{Method: u.AuthMethod})
	}
	if !s.Verify(u, oldPassword) {
		return fmt.Errorf("change password: %w", domain.ErrIncorrectCredential)
	}
	if newPassword == oldPassword {
		return fmt.Errorf("change password: %w", domain.ErrSamePassword)
	}
	if err := validate.Password(newPassword); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), domain.ErrPolicyViolation)
	}
	hash, err := s.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.repo.SetCredential(ctx, userID, domain.Password{Hash: hash})
}
