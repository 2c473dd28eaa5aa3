package chat

import (
	"sync"
	"time"

	"moobot/app/service/classifier"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Turn struct {
	Sender Sender            `json:"sender"`
	Text   string            `json:"text"`
	Intent classifier.Intent `json:"intent,omitempty"`
	// Images maps cow id to image path
	Images  map[string]string `json:"images,omitempty"`
	Missing []string          `json:"missing,omitempty"`
	Rows    [][]string        `json:"rows,omitempty"`
	Time    time.Time         `json:"time"`
}

// Session is the append-only turn log of one conversation.
type Session struct {
	ID      uuid.UUID
	Created time.Time

	mu     sync.RWMutex
	turns  []Turn
	closed bool
}

func newSession() *Session {
	return &Session{
		ID:      uuid.New(),
		Created: time.Now(),
	}
}

// Append is a no-op once the session is cleared.
func (s *Session) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if turn.Time.IsZero() {
		turn.Time = time.Now()
	}

	s.turns = append(s.turns, turn)
}

func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Turn(nil), s.turns...)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns)
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	s.closed = true
}
