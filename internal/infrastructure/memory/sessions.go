package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rohansroy/giterdone/internal/domain"
)

// SessionStore keeps sessions keyed by ID.
type SessionStore struct {
	mu   sync.Mutex
	byID map[string]domain.Session
	now  func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[string]domain.Session), now: time.Now}
}

func (s *SessionStore) Put(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.SessionID] = *sess
	return nil
}

func (s *SessionStore) GetByRefreshHash(_ context.Context, hash string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.RefreshTokenHash == hash && sess.Enable {
			out := sess
			return &out, nil
		}
	}
	return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
}

func (s *SessionStore) Rotate(_ context.Context, sessionID, oldHash, newHash string, newExpiry int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok || !sess.Enable || sess.RefreshTokenHash != oldHash {
		return fmt.Errorf("rotate session %s: %w", sessionID, domain.ErrInvalidOrExpired)
	}
	sess.RefreshTokenHash = newHash
	sess.RefreshExpiresAt = newExpiry
	sess.UpdatedAt = s.now().UTC()
	s.byID[sessionID] = sess
	return nil
}

func (s *SessionStore) Revoke(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[sessionID]; ok {
		sess.Enable = false
		sess.UpdatedAt = s.now().UTC()
		s.byID[sessionID] = sess
	}
	return nil
}

func (s *SessionStore) RevokeByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.byID {
		if sess.UserID == userID && sess.Enable {
			sess.Enable = false
			sess.UpdatedAt = s.now().UTC()
			s.byID[id] = sess
		}
	}
	return nil
}
