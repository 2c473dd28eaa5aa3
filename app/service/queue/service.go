package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"moobot/app/service/chat"

	"github.com/samber/do"
)

const bufferSize = 64

var (
	ErrQueueFull   = errors.New("message queue is full")
	ErrQueueClosed = errors.New("message queue is closed")
)

var _ do.Shutdownable = (*Service)(nil)

// Service hands user turns to the single engine worker.
type Service struct {
	mu     sync.RWMutex
	closed bool
	queue  chan Message
}

type Message struct {
	Session *chat.Session
	Text    string
	Ctx     context.Context

	reply chan chat.Turn
}

// Reply delivers the bot turn to the waiting submitter, if it is still waiting.
func (m Message) Reply(turn chat.Turn) {
	select {
	case m.reply <- turn:
	default:
	}
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(bufferSize), nil
}

func NewService(size int) *Service {
	return &Service{
		queue: make(chan Message, size),
	}
}

// Submit enqueues a turn and waits for the bot reply.
func (s *Service) Submit(ctx context.Context, session *chat.Session, text string) (chat.Turn, error) {
	msg := Message{
		Session: session,
		Text:    text,
		Ctx:     ctx,
		reply:   make(chan chat.Turn, 1),
	}

	if err := s.add(msg); err != nil {
		return chat.Turn{}, err
	}

	select {
	case turn := <-msg.reply:
		return turn, nil
	case <-ctx.Done():
		return chat.Turn{}, ctx.Err()
	}
}

func (s *Service) add(msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrQueueClosed
	}

	select {
	case s.queue <- msg:
		return nil
	default:
		slog.Warn("message queue is full")
		return ErrQueueFull
	}
}

func (s *Service) Channel() <-chan Message {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}
