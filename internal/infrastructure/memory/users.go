// Package memory provides in-process implementations of the auth stores.
// They back STORE_BACKEND=memory for local development and the
// application-level tests. State is lost on restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rohansroy/giterdone/internal/domain"
)

// UserStore keeps users keyed by ID with an email index.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("create user %s: %w", u.Email, domain.ErrEmailTaken)
	}
	s.byID[u.UserID] = cloneUser(u)
	s.byEmail[u.Email] = u.UserID
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrUserNotFound)
	}
	return cloneUser(s.byID[id]), nil
}

func (s *UserStore) SetCredential(_ context.Context, userID string, c domain.Credential) error {
	return s.mutate(userID, func(u *domain.User) error {
		if pk, ok := c.(domain.Passkey); ok && pk.Key != nil {
			c = domain.Passkey{Key: clonePasskey(pk.Key)}
		}
		u.SetCredential(c)
		return nil
	})
}

func (s *UserStore) SetTOTP(_ context.Context, userID, secret string, enabled bool) error {
	return s.mutate(userID, func(u *domain.User) error {
		u.TOTPSecret = secret
		u.TOTPEnabled = enabled
		return nil
	})
}

func (s *UserStore) RecordLogin(_ context.Context, userID string, at time.Time) error {
	return s.mutate(userID, func(u *domain.User) error {
		at = at.UTC()
		u.LastLoginAt = &at
		return nil
	})
}

func (s *UserStore) UpdateProfile(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	err := s.mutate(userID, func(u *domain.User) error {
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}
		if req.Age != nil {
			age := *req.Age
			u.Age = &age
		}
		if req.Birthday != nil {
			u.Birthday = *req.Birthday
		}
		if req.AvatarStyle != nil {
			u.AvatarStyle = *req.AvatarStyle
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// AdvanceSignCount mirrors the conditional update of the DynamoDB store:
// the stored counter only moves strictly forward.
func (s *UserStore) AdvanceSignCount(_ context.Context, userID string, credentialID []byte, count uint32) error {
	return s.mutate(userID, func(u *domain.User) error {
		if !u.HasPasskey() || !bytes.Equal(u.Passkey.CredentialID, credentialID) || count <= u.Passkey.SignCount {
			return fmt.Errorf("advance sign count to %d: %w", count, domain.ErrReplaySuspected)
		}
		u.Passkey.SignCount = count
		return nil
	})
}

func (s *UserStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	delete(s.byEmail, u.Email)
	delete(s.byID, userID)
	return nil
}

func (s *UserStore) mutate(userID string, fn func(*domain.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = s.now().UTC()
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Passkey = clonePasskey(u.Passkey)
	if u.Age != nil {
		age := *u.Age
		c.Age = &age
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		c.LastLoginAt = &at
	}
	return &c
}

func clonePasskey(p *domain.PasskeyCredential) *domain.PasskeyCredential {
	if p == nil {
		return nil
	}
	c := *p
	c.CredentialID = bytes.Clone(p.CredentialID)
	c.PublicKey = bytes.Clone(p.PublicKey)
	c.AAGUID = bytes.Clone(p.AAGUID)
	c.Transports = append([]string(nil), p.Transports...)
	return &c
}
