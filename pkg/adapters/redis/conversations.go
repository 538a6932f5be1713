package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/mdsa/pkg/domain"
)

// ConversationStore implements ports.ConversationStore using Redis.
// Each session is one JSON value; an optional TTL expires idle sessions.
type ConversationStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewConversationStore stores sessions under prefix+"session:". A zero ttl keeps them forever.
func NewConversationStore(client *backend.Client, prefix string, ttl time.Duration) *ConversationStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ConversationStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ConversationStore) key(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *ConversationStore) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	var turns []domain.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", sessionID, err)
	}
	return turns, nil
}

// Save writes the turns and refreshes the TTL.
func (s *ConversationStore) Save(ctx context.Context, sessionID string, turns []domain.Turn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err()
}

func (s *ConversationStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}
