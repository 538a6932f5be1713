package models

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mem    float64
	closed int
}

func (f *fakeModel) Generate(context.Context, ports.GenerateRequest) (ports.GenerateResponse, error) {
	return ports.GenerateResponse{Text: "ok", TokensGenerated: 1}, nil
}
func (f *fakeModel) MemoryMB() float64 { return f.mem }
func (f *fakeModel) Close() error      { f.closed++; return nil }

func cfg(name string) domain.ModelConfig {
	return domain.ModelConfigForTier3(name)
}

// steppingClock returns strictly increasing timestamps.
func steppingClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry(2)
	_, err := r.Register("a", cfg("a"), &fakeModel{})
	require.NoError(t, err)

	_, err = r.Register("a", cfg("a"), &fakeModel{})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_EvictsLeastRecentlyAccessed(t *testing.T) {
	var evicted []string
	r := NewRegistry(2, withClock(steppingClock()), WithRegistryHooks(domain.LifecycleHooks{
		OnModelEvict: func(_ context.Context, e *domain.ModelEvent) { evicted = append(evicted, e.ModelID) },
	}))

	a, b, c := &fakeModel{}, &fakeModel{}, &fakeModel{}
	_, err := r.Register("a", cfg("a"), a)
	require.NoError(t, err)
	_, err = r.Register("b", cfg("b"), b)
	require.NoError(t, err)

	_, ok := r.Get("a")
	require.True(t, ok)

	_, err = r.Register("c", cfg("c"), c)
	require.NoError(t, err)

	assert.False(t, r.IsLoaded("b"), "b was least recently accessed")
	assert.True(t, r.IsLoaded("a"))
	assert.True(t, r.IsLoaded("c"))
	assert.Equal(t, []string{"a", "c"}, r.ListModels())
	assert.Equal(t, 1, b.closed)
	assert.Equal(t, []string{"b"}, evicted)
	assert.EqualValues(t, 1, r.Stats().Evictions)
}

func TestRegistry_TieBreaksByRegistrationOrder(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(2, withClock(func() time.Time { return frozen }))

	_, _ = r.Register("first", cfg("first"), &fakeModel{})
	_, _ = r.Register("second", cfg("second"), &fakeModel{})
	_, _ = r.Register("third", cfg("third"), &fakeModel{})

	assert.Equal(t, []string{"second", "third"}, r.ListModels())
}

func TestRegistry_GetUpdatesUsage(t *testing.T) {
	r := NewRegistry(2, withClock(steppingClock()))
	info, err := r.Register("a", cfg("a"), &fakeModel{mem: 100})
	require.NoError(t, err)
	assert.Zero(t, info.UseCount)

	got, ok := r.Get("a")
	require.True(t, ok)
	got2, ok := r.Get("a")
	require.True(t, ok)

	assert.EqualValues(t, 1, got.UseCount)
	assert.EqualValues(t, 2, got2.UseCount)
	assert.True(t, got2.LastUsed.After(got.LastUsed))

	peek, ok := r.Peek("a")
	require.True(t, ok)
	assert.EqualValues(t, 2, peek.UseCount)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	s := r.Stats()
	assert.Equal(t, 1, s.ModelsLoaded)
	assert.Equal(t, 2, s.MaxModels)
	assert.EqualValues(t, 2, s.TotalUses)
	assert.InDelta(t, 100.0, s.TotalMemoryMB, 0.001)
}

func TestRegistry_PinnedModelsAreNotEvicted(t *testing.T) {
	r := NewRegistry(1, withClock(steppingClock()))
	a := &fakeModel{}
	_, err := r.Register("a", cfg("a"), a)
	require.NoError(t, err)

	lease, ok := r.Checkout("a")
	require.True(t, ok)

	_, err = r.Register("b", cfg("b"), &fakeModel{})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len(), "pinned model stays resident")
	assert.Equal(t, 1, r.Stats().Pinned)
	assert.Zero(t, a.closed)

	lease.Release()
	lease.Release()

	assert.Equal(t, 1, r.Len())
	assert.False(t, r.IsLoaded("a"))
	assert.True(t, r.IsLoaded("b"))
	assert.Equal(t, 1, a.closed)
}

func TestRegistry_MemoryBudget(t *testing.T) {
	r := NewRegistry(10, WithMaxMemoryMB(500), withClock(steppingClock()))

	_, _ = r.Register("a", cfg("a"), &fakeModel{mem: 200})
	_, _ = r.Register("b", cfg("b"), &fakeModel{mem: 200})
	_, err := r.Register("c", cfg("c"), &fakeModel{mem: 200})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, r.ListModels())
	assert.InDelta(t, 400.0, r.Stats().TotalMemoryMB, 0.001)
}

func TestRegistry_UnloadAndClear(t *testing.T) {
	r := NewRegistry(3)
	a, b := &fakeModel{mem: 10}, &fakeModel{mem: 20}
	_, _ = r.Register("a", cfg("a"), a)
	_, _ = r.Register("b", cfg("b"), b)

	assert.ErrorIs(t, r.Unload("missing"), domain.ErrModelNotFound)

	lease, ok := r.Checkout("a")
	require.True(t, ok)
	assert.ErrorIs(t, r.Unload("a"), domain.ErrModelInUse)
	lease.Release()

	require.NoError(t, r.Unload("a"))
	assert.Equal(t, 1, a.closed)

	r.Clear()
	assert.Zero(t, r.Len())
	assert.Equal(t, 1, b.closed)
	assert.Zero(t, r.Stats().TotalMemoryMB)
}
