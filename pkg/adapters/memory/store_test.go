package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunDocumentStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	doc := domain.Document{ID: "d1", Scope: domain.ScopeGlobal, Metadata: map[string]string{"k": "v"}, Tags: []string{"t"}}
	require.NoError(t, store.Save(ctx, doc))
	doc.Metadata["k"] = "mutated"
	doc.Tags[0] = "mutated"

	docs, err := store.List(ctx, domain.ScopeGlobal, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "v", docs[0].Metadata["k"])
	assert.Equal(t, "t", docs[0].Tags[0])
}
