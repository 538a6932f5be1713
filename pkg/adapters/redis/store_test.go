package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/adapters/redis"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return redis.NewFromClient(client, opts...), mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	ports.RunDocumentStoreContract(t, store)
}

func TestRedisStore_MoveBetweenCorpora(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	doc := domain.Document{ID: "d1", Content: "rates", Scope: domain.ScopeLocal, DomainID: "finance", Seq: 1}
	require.NoError(t, store.Save(ctx, doc))

	doc.Scope = domain.ScopeGlobal
	doc.DomainID = ""
	require.NoError(t, store.Save(ctx, doc))

	local, err := store.List(ctx, domain.ScopeLocal, "finance")
	require.NoError(t, err)
	assert.Empty(t, local)

	global, err := store.List(ctx, domain.ScopeGlobal, "")
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, "rates", global[0].Content)
}

func TestRedisStore_PrunesStaleIndex(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Document{ID: "a", Content: "x", Scope: domain.ScopeGlobal, Seq: 1}))
	require.NoError(t, store.Save(ctx, domain.Document{ID: "b", Content: "y", Scope: domain.ScopeGlobal, Seq: 2}))
	mr.Del("test:doc:a")

	docs, err := store.List(ctx, domain.ScopeGlobal, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)

	members, err := mr.ZMembers("test:corpus:global")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}
