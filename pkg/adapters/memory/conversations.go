package memory

import (
	"context"
	"sync"

	"github.com/aretw0/mdsa/pkg/domain"
)

// ConversationStore implements ports.ConversationStore in memory.
// Safe for concurrent use.
type ConversationStore struct {
	mu    sync.RWMutex
	turns map[string][]domain.Turn
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{turns: make(map[string][]domain.Turn)}
}

func (s *ConversationStore) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.Turn(nil), turns...), nil
}

func (s *ConversationStore) Save(ctx context.Context, sessionID string, turns []domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append([]domain.Turn(nil), turns...)
	return nil
}

func (s *ConversationStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	return nil
}
