package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

func TestConversationStore_Contract(t *testing.T) {
	ports.RunConversationStoreContract(t, memory.NewConversationStore())
}

func TestConversationStore_CopiesTurns(t *testing.T) {
	store := memory.NewConversationStore()
	ctx := context.Background()

	turns := []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}
	require.NoError(t, store.Save(ctx, "s1", turns))
	turns[0].Content = "changed"

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", got[0].Content)
}
