package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/adapters/redis"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/session"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.ConversationStore
}

func (s SlowStore) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	time.Sleep(5 * time.Millisecond)
	return s.ConversationStore.Load(ctx, sessionID)
}

func (s SlowStore) Save(ctx context.Context, sessionID string, turns []domain.Turn) error {
	time.Sleep(5 * time.Millisecond)
	return s.ConversationStore.Save(ctx, sessionID, turns)
}

func TestManager_Exchange(t *testing.T) {
	m := session.NewManager(memory.NewConversationStore())
	ctx := context.Background()

	err := m.Exchange(ctx, "s1", "Where is my order", func(_ context.Context, history []domain.Turn) (string, error) {
		assert.Empty(t, history)
		return "It ships tomorrow", nil
	})
	require.NoError(t, err)

	err = m.Exchange(ctx, "s1", "Can I change the address", func(_ context.Context, history []domain.Turn) (string, error) {
		require.Len(t, history, 2)
		assert.Equal(t, domain.Turn{Role: domain.RoleAssistant, Content: "It ships tomorrow"}, history[1])
		return "", nil
	})
	require.NoError(t, err)

	history, err := m.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3, "empty replies are not recorded")
	assert.Equal(t, domain.RoleUser, history[2].Role)
}

func TestManager_FailedExchangeKeepsHistory(t *testing.T) {
	m := session.NewManager(memory.NewConversationStore())
	ctx := context.Background()

	err := m.Exchange(ctx, "s1", "hello", func(context.Context, []domain.Turn) (string, error) {
		return "", errors.New("model down")
	})
	assert.EqualError(t, err, "model down")

	history, err := m.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManager_MaxTurns(t *testing.T) {
	m := session.NewManager(memory.NewConversationStore(), session.WithMaxTurns(4))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Exchange(ctx, "s1", fmt.Sprintf("q%d", i), func(context.Context, []domain.Turn) (string, error) {
			return fmt.Sprintf("a%d", i), nil
		}))
	}

	history, err := m.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "q3", history[0].Content)
	assert.Equal(t, "a4", history[3].Content)
}

func TestManager_Locking(t *testing.T) {
	m := session.NewManager(SlowStore{memory.NewConversationStore()}, session.WithMaxTurns(100))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Exchange(ctx, "race", fmt.Sprintf("q%d", i), func(context.Context, []domain.Turn) (string, error) {
				return "ok", nil
			})
		}(i)
	}
	wg.Wait()

	history, err := m.History(ctx, "race")
	require.NoError(t, err)
	assert.Len(t, history, 20, "no exchange is lost")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	m := session.NewManager(
		redis.NewConversationStore(client, "test:", 0),
		session.WithLocker(redis.NewLocker(client, "test:"), time.Second),
	)
	ctx := context.Background()

	require.NoError(t, m.Exchange(ctx, "s1", "hello", func(context.Context, []domain.Turn) (string, error) {
		var locked bool
		for _, k := range mr.Keys() {
			if k != "test:session:s1" {
				locked = true
			}
		}
		assert.True(t, locked, "lock is held during the exchange")
		return "hi", nil
	}))

	assert.Equal(t, []string{"test:session:s1"}, mr.Keys(), "lock is released")

	require.NoError(t, m.Delete(ctx, "s1"))
	assert.Empty(t, mr.Keys())
}
