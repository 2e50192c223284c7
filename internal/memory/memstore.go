package memory

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local runs. It applies the
// same retention policy as the Mongo store.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]Message

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: map[string][]Message{},
		now:      time.Now,
	}
}

func (s *MemoryStore) History(ctx context.Context, id string, maxPairs int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.messages[id]
	if !ok {
		return nil, nil
	}

	purged := purgeExpired(stored, s.now())
	if len(purged) != len(stored) {
		if len(purged) == 0 {
			delete(s.messages, id)
		} else {
			s.messages[id] = purged
		}
	}

	out := capPairs(purged, maxPairs)
	// Return a copy so callers cannot mutate stored history.
	result := make([]Message, len(out))
	copy(result, out)
	return result, nil
}

func (s *MemoryStore) AppendExchange(ctx context.Context, id, userText, assistantText string, maxPairs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	next := append(purgeExpired(s.messages[id], now),
		Message{Role: RoleUser, Content: userText, CreatedAt: now},
		Message{Role: RoleAssistant, Content: assistantText, CreatedAt: now},
	)
	s.messages[id] = capPairs(next, maxPairs)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}
