package conversation

import (
	"context"
	"strings"
	"sync"
	"time"
)

// conversationLog holds one conversation; its mutex orders appends to it
type conversationLog struct {
	mu       sync.RWMutex
	messages []Message
}

// MemoryStore keeps conversations in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	logs   map[string]*conversationLog
	closed bool
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[string]*conversationLog),
		now:  time.Now,
	}
}

// logFor returns the log for id, creating it when create is set
func (s *MemoryStore) logFor(id string, create bool) (*conversationLog, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	log, ok := s.logs[id]
	s.mu.RUnlock()
	if ok || !create {
		return log, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if log, ok = s.logs[id]; !ok {
		log = &conversationLog{}
		s.logs[id] = log
	}
	return log, nil
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, msgs ...Message) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrInvalidMessage
	}
	for _, msg := range msgs {
		if err := validate(msg); err != nil {
			return nil, err
		}
	}

	log, err := s.logFor(conversationID, true)
	if err != nil {
		return nil, err
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	stored, err := prepare(conversationID, int64(len(log.messages))+1, s.now(), msgs)
	if err != nil {
		return nil, err
	}
	log.messages = append(log.messages, stored...)

	out := make([]Message, len(stored))
	for i, msg := range stored {
		out[i] = msg.clone()
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, conversationID string, page Page) (*History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log, err := s.logFor(conversationID, false)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return nil, ErrNotFound
	}

	log.mu.RLock()
	defer log.mu.RUnlock()
	return paginate(conversationID, log.messages, page), nil
}

func (s *MemoryStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	log, err := s.logFor(conversationID, false)
	if err != nil {
		return false, err
	}
	return log != nil, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
