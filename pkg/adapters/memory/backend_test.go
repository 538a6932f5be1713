package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/aretw0/mdsa/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_Contract(t *testing.T) {
	tests.ModelBackendContractTest(t, memory.NewBackend(), domain.ModelConfigForTier3("gpt2"))
}

func TestBackend_CountsLoadsAndCloses(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()

	m, err := b.Load(ctx, domain.ModelConfigForTier3("gpt2"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Loads("gpt2"))
	assert.InDelta(t, 256.0, m.MemoryMB(), 0.001)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, b.Closed("gpt2"))
}

func TestBackend_LoadFailure(t *testing.T) {
	boom := errors.New("weights missing")
	b := memory.NewBackend(memory.WithLoadFailure("broken", boom))

	_, err := b.Load(context.Background(), domain.ModelConfigForTier3("broken"))
	assert.ErrorIs(t, err, boom)

	b.SetLoadFailure("broken", nil)
	_, err = b.Load(context.Background(), domain.ModelConfigForTier3("broken"))
	assert.NoError(t, err)
	assert.EqualValues(t, 2, b.TotalLoads())
}

func TestBackend_GenerateHonorsDeadline(t *testing.T) {
	b := memory.NewBackend(memory.WithGenerateDelay(time.Second))
	m, err := b.Load(context.Background(), domain.ModelConfigForTier3("gpt2"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Generate(ctx, ports.GenerateRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackend_MaxTokensTruncates(t *testing.T) {
	b := memory.NewBackend(memory.WithResponder(func(string, ports.GenerateRequest) string {
		return "one two three four five"
	}))
	m, err := b.Load(context.Background(), domain.ModelConfigForTier3("gpt2"))
	require.NoError(t, err)

	resp, err := m.Generate(context.Background(), ports.GenerateRequest{Prompt: "x", MaxTokens: 3})
	require.NoError(t, err)
	assert.Equal(t, "one two three", resp.Text)
	assert.Equal(t, 3, resp.TokensGenerated)
}
