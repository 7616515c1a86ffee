package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rohansroy/giterdone/internal/domain"
)

// ChallengeStore holds pending WebAuthn challenges until taken or expired.
type ChallengeStore struct {
	mu    sync.Mutex
	items map[string]domain.Challenge
	now   func() time.Time
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{items: make(map[string]domain.Challenge), now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (s *ChallengeStore) WithClock(now func() time.Time) *ChallengeStore {
	s.now = now
	return s
}

func (s *ChallengeStore) Put(_ context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.items[c.Key] = *c
	return nil
}

func (s *ChallengeStore) Take(_ context.Context, key string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[key]
	delete(s.items, key)
	if !ok || c.Expired(s.now()) {
		return nil, fmt.Errorf("challenge %s: %w", key, domain.ErrChallengeExpired)
	}
	return &c, nil
}

// sweep drops expired entries. Callers hold mu.
func (s *ChallengeStore) sweep() {
	now := s.now()
	for k, c := range s.items {
		if c.Expired(now) {
			delete(s.items, k)
		}
	}
}
