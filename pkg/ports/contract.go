package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore implementation
// adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")
	domainA := "contract-a-" + suffix
	domainB := "contract-b-" + suffix

	newDoc := func(id string, scope domain.Scope, domainID string, seq uint64) domain.Document {
		return domain.Document{
			ID:        id + "-" + suffix,
			Content:   fmt.Sprintf("document %s", id),
			Metadata:  map[string]string{"source": "contract"},
			Tags:      []string{"contract"},
			Scope:     scope,
			DomainID:  domainID,
			Seq:       seq,
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and List", func(t *testing.T) {
		d1 := newDoc("a1", domain.ScopeLocal, domainA, 2)
		d2 := newDoc("a2", domain.ScopeLocal, domainA, 1)
		require.NoError(t, store.Save(ctx, d1))
		require.NoError(t, store.Save(ctx, d2))

		docs, err := store.List(ctx, domain.ScopeLocal, domainA)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, d2.ID, docs[0].ID, "List must order by sequence")
		assert.Equal(t, d1.Content, docs[1].Content)
		assert.Equal(t, "contract", docs[1].Metadata["source"])
		assert.Equal(t, []string{"contract"}, docs[1].Tags)
	})

	t.Run("Scopes Are Isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newDoc("b1", domain.ScopeLocal, domainB, 1)))

		docs, err := store.List(ctx, domain.ScopeLocal, domainB)
		require.NoError(t, err)
		require.Len(t, docs, 1)

		for _, d := range docs {
			assert.NotEqual(t, domainA, d.DomainID)
		}
	})

	t.Run("Global", func(t *testing.T) {
		g := newDoc("g1", domain.ScopeGlobal, "", 1)
		require.NoError(t, store.Save(ctx, g))

		docs, err := store.List(ctx, domain.ScopeGlobal, "")
		require.NoError(t, err)
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		assert.Contains(t, ids, g.ID)
	})

	t.Run("Delete", func(t *testing.T) {
		d := newDoc("del", domain.ScopeLocal, domainA, 3)
		require.NoError(t, store.Save(ctx, d))
		require.NoError(t, store.Delete(ctx, d.ID))
		require.NoError(t, store.Delete(ctx, "missing-"+suffix), "Delete of a missing id should not fail")

		docs, err := store.List(ctx, domain.ScopeLocal, domainA)
		require.NoError(t, err)
		for _, got := range docs {
			assert.NotEqual(t, d.ID, got.ID)
		}
	})
}

// RunConversationStoreContract verifies that a ConversationStore implementation
// adheres to the defined interface contract.
func RunConversationStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()
	id := "contract-" + time.Now().Format("20060102150405.000000")

	_, err := store.Load(ctx, id)
	require.ErrorIs(t, err, domain.ErrSessionNotFound, "Load of an unknown session must return ErrSessionNotFound")

	turns := []domain.Turn{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "second"},
	}
	require.NoError(t, store.Save(ctx, id, turns))

	got, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, turns, got, "Load must keep turn order")

	require.NoError(t, store.Save(ctx, id, turns[:1]))
	got, err = store.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, got, 1, "Save must replace the history")

	require.NoError(t, store.Delete(ctx, id))
	require.NoError(t, store.Delete(ctx, id), "Delete of a missing session should not fail")
	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
