package models_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedBackend blocks loads of gated models until the gate is closed.
type gatedBackend struct {
	*memory.Backend
	gate    chan struct{}
	gated   map[string]bool
	started chan string
}

func newGatedBackend(gated ...string) *gatedBackend {
	g := &gatedBackend{
		Backend: memory.NewBackend(),
		gate:    make(chan struct{}),
		gated:   make(map[string]bool),
		started: make(chan string, 16),
	}
	for _, name := range gated {
		g.gated[name] = true
	}
	return g
}

func (g *gatedBackend) Load(ctx context.Context, cfg domain.ModelConfig) (ports.LoadedModel, error) {
	g.started <- cfg.Name
	if g.gated[cfg.Name] {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.Backend.Load(ctx, cfg)
}

// load checks out a tier 3 model and releases it straight away.
func load(m *models.Manager, name string) error {
	lease, err := m.GetOrLoad(context.Background(), domain.ModelConfigForTier3(name))
	if err != nil {
		return err
	}
	lease.Release()
	return nil
}

func TestManager_ConcurrentGetOrLoadLoadsOnce(t *testing.T) {
	backend := memory.NewBackend(memory.WithLoadDelay(50 * time.Millisecond))
	m := models.NewManager(models.NewBackendSet(backend))
	cfg := domain.ModelConfigForTier3("gpt2")

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.GetOrLoad(context.Background(), cfg)
			if err == nil {
				lease.Release()
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stats := m.Stats()
	assert.Equal(t, 1, backend.Loads("gpt2"))
	assert.Equal(t, 1, stats.ModelsLoaded)
	assert.EqualValues(t, callers, stats.TotalUses)
	assert.EqualValues(t, 1, stats.Loads)
}

func TestManager_LoadFailureDoesNotPoison(t *testing.T) {
	boom := errors.New("weights missing")
	backend := memory.NewBackend(memory.WithLoadFailure("broken", boom), memory.WithLoadDelay(20*time.Millisecond))
	m := models.NewManager(models.NewBackendSet(backend))
	cfg := domain.ModelConfigForTier3("broken")

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.GetOrLoad(context.Background(), cfg)
			if err == nil {
				lease.Release()
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrModelLoad)
		assert.ErrorIs(t, err, boom)
		var le *models.LoadError
		assert.ErrorAs(t, err, &le)
	}
	assert.False(t, m.IsLoaded("broken"))
	assert.EqualValues(t, 0, m.Stats().ModelsLoaded)

	backend.SetLoadFailure("broken", nil)
	lease, err := m.GetOrLoad(context.Background(), cfg)
	require.NoError(t, err)
	defer lease.Release()
	assert.Equal(t, "broken", lease.Info().ModelID)
	assert.True(t, m.IsLoaded("broken"))
}

func TestManager_DifferentIDsDoNotBlock(t *testing.T) {
	backend := newGatedBackend("slow")
	m := models.NewManager(models.NewBackendSet(backend))

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- load(m, "slow")
	}()
	require.Equal(t, "slow", <-backend.started)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	lease, err := m.GetOrLoad(ctx, domain.ModelConfigForTier3("fast"))
	require.NoError(t, err, "fast model must load while slow is in flight")

	lease.Release()

	close(backend.gate)
	require.NoError(t, <-slowDone)
	assert.ElementsMatch(t, []string{"slow", "fast"}, m.ListModels())
}

func TestManager_CanceledWaiterDoesNotFailOthers(t *testing.T) {
	backend := newGatedBackend("gpt2")
	m := models.NewManager(models.NewBackendSet(backend))
	cfg := domain.ModelConfigForTier3("gpt2")

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := m.GetOrLoad(ctx, cfg)
		firstDone <- err
	}()
	<-backend.started

	secondDone := make(chan error, 1)
	go func() {
		lease, err := m.GetOrLoad(context.Background(), cfg)
		if err == nil {
			lease.Release()
		}
		secondDone <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(backend.gate)
	require.NoError(t, <-secondDone)
	assert.Equal(t, 1, backend.Loads("gpt2"))
}

func TestManager_LeasePinsUntilRelease(t *testing.T) {
	backend := memory.NewBackend()
	m := models.NewManager(models.NewBackendSet(backend), models.WithRegistry(models.NewRegistry(1)))

	lease, err := m.GetOrLoad(context.Background(), domain.ModelConfigForTier3("a"))
	require.NoError(t, err)
	assert.NotNil(t, lease.Model())

	require.NoError(t, load(m, "b"))
	assert.True(t, m.IsLoaded("a"), "leased model must survive eviction pressure")
	assert.False(t, m.IsLoaded("b"), "b is the only idle model once its own checkout ends")
	assert.Equal(t, 1, backend.Closed("b"))

	lease.Release()
	assert.True(t, m.IsLoaded("a"))
	assert.Zero(t, backend.Closed("a"))
}

func TestManager_HandleSurvivesConcurrentLoad(t *testing.T) {
	backend := memory.NewBackend()
	m := models.NewManager(models.NewBackendSet(backend), models.WithRegistry(models.NewRegistry(1)))

	a, err := m.GetOrLoad(context.Background(), domain.ModelConfigForTier3("model-a"))
	require.NoError(t, err)
	require.NoError(t, load(m, "model-b"))

	assert.Zero(t, backend.Closed("model-a"), "held handle must not be closed")
	out, err := a.Model().Generate(context.Background(), ports.GenerateRequest{Prompt: "ping"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)

	a.Release()
	require.NoError(t, load(m, "model-c"))
	assert.Equal(t, 1, backend.Closed("model-a"))
	assert.Equal(t, []string{"model-c"}, m.ListModels())
}

func TestManager_UnknownBackend(t *testing.T) {
	m := models.NewManager(models.NewBackendSet(memory.NewBackend()))
	cfg := domain.ModelConfigForTier3("ollama://llama3.2")

	_, err := m.GetOrLoad(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrModelLoad)
	assert.EqualValues(t, 1, m.Stats().LoadFailures)
}

type countingLocker struct {
	mu    sync.Mutex
	keys  []string
	freed int
}

func (c *countingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	c.mu.Lock()
	c.keys = append(c.keys, key)
	c.mu.Unlock()
	return func(context.Context) error {
		c.mu.Lock()
		c.freed++
		c.mu.Unlock()
		return nil
	}, nil
}

func TestManager_UsesDistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	m := models.NewManager(models.NewBackendSet(memory.NewBackend()), models.WithLocker(locker, time.Second))

	require.NoError(t, load(m, "gpt2"))
	require.NoError(t, load(m, "gpt2"))

	assert.Equal(t, []string{"model:gpt2"}, locker.keys)
	assert.Equal(t, 1, locker.freed)
}

func TestManager_HooksReportLoads(t *testing.T) {
	var loaded []string
	hooks := domain.LifecycleHooks{
		OnModelLoad: func(_ context.Context, e *domain.ModelEvent) {
			if e.Err == nil {
				loaded = append(loaded, e.ModelID)
			}
		},
	}
	m := models.NewManager(models.NewBackendSet(memory.NewBackend()), models.WithHooks(hooks))

	require.NoError(t, load(m, "gpt2"))
	assert.Equal(t, []string{"gpt2"}, loaded)
}
