package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/adapters/redis"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

func TestConversationStore_Contract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	ports.RunConversationStoreContract(t, redis.NewConversationStore(client, "", 0))
}

func TestConversationStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewConversationStore(client, "test:", time.Minute)
	ctx := context.Background()

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "Where is my order"},
		{Role: domain.RoleAssistant, Content: "It ships tomorrow"},
	}
	require.NoError(t, store.Save(ctx, "s1", turns))
	assert.True(t, mr.Exists("test:session:s1"))
	assert.Equal(t, time.Minute, mr.TTL("test:session:s1"))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, turns, got)

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "idle sessions expire")

	require.NoError(t, store.Save(ctx, "s2", turns))
	require.NoError(t, store.Delete(ctx, "s2"))
	require.NoError(t, store.Delete(ctx, "missing"))
	_, err = store.Load(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
