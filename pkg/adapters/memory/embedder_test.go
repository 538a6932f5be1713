package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := memory.NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Transfer money to savings")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "transfer MONEY to savings!")
	require.NoError(t, err)

	require.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, floats.Norm(a, 2), 1e-9)
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	v, err := memory.NewHashEmbedder(0).Embed(context.Background(), "a b")
	require.NoError(t, err)
	assert.Len(t, v, memory.DefaultDimension)
	assert.Zero(t, floats.Sum(v))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"transfer", "100", "savings"}, memory.Tokenize("Transfer $100 to savings"))
}
