package memory

import (
	"context"
	"sync"
	"time"

	"triviacast-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Expired sessions are dropped lazily on access.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]storedSession
}

type storedSession struct {
	session   domain.QuizSession
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = storedSession{session: *session, expiresAt: s.expiry()}
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.liveLocked(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := stored.session
	return &cp, nil
}

func (s *SessionStore) Update(_ context.Context, id string, fn func(*domain.QuizSession) error) (*domain.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.liveLocked(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := stored.session
	if err := fn(&cp); err != nil {
		return nil, err
	}
	s.sessions[id] = storedSession{session: cp, expiresAt: s.expiry()}
	out := cp
	return &out, nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) liveLocked(id string) (storedSession, bool) {
	stored, ok := s.sessions[id]
	if !ok {
		return storedSession{}, false
	}
	if !stored.expiresAt.IsZero() && !stored.expiresAt.After(s.clock()) {
		delete(s.sessions, id)
		return storedSession{}, false
	}
	return stored, true
}

func (s *SessionStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.clock().Add(s.ttl)
}
