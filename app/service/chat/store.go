package chat

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/do"
)

var ErrSessionNotFound = errors.New("session not found")

var _ do.Shutdownable = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewStore(_ *do.Injector) (*Store, error) {
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
	}, nil
}

func (s *Store) Create() *Session {
	session := newSession()

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	slog.Debug("Session created", "session", session.ID)

	return session
}

func (s *Store) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// Delete ends the session and drops its turns.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	session.clear()
	slog.Debug("Session deleted", "session", id)

	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *Store) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		session.clear()
		delete(s.sessions, id)
	}

	return nil
}
