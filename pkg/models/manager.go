package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// DefaultLoadTimeout bounds a single backend load.
const DefaultLoadTimeout = 5 * time.Minute

// maxLoadAttempts bounds reloads when a model is evicted between load and checkout.
const maxLoadAttempts = 3

// LoadError is returned when a backend fails to load a model.
type LoadError struct {
	ModelID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.ModelID, e.Err)
}

// Unwrap exposes both domain.ErrModelLoad and the backend cause.
func (e *LoadError) Unwrap() []error {
	return []error{domain.ErrModelLoad, e.Err}
}

// ManagerStats extends the registry stats with load counters.
type ManagerStats struct {
	RegistryStats
	Loads        int64 `json:"loads"`
	LoadFailures int64 `json:"load_failures"`
}

// Manager is the get-or-load façade over a Registry.
//
// Concurrent requests for the same model id share a single backend load;
// requests for different ids proceed independently. A failed load is
// reported to the callers that waited on it and leaves nothing behind, so
// the next request retries.
type Manager struct {
	registry *Registry
	backends *BackendSet
	group    singleflight.Group

	locker      ports.DistributedLocker
	lockTTL     time.Duration
	loadTimeout time.Duration

	loads    atomic.Int64
	failures atomic.Int64

	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRegistry uses an existing registry instead of a default one.
func WithRegistry(r *Registry) ManagerOption {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithLocker serializes loads across replicas sharing a model cache.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
		m.lockTTL = ttl
	}
}

// WithLoadTimeout bounds each backend load.
func WithLoadTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.loadTimeout = d
	}
}

// WithHooks installs load hooks.
func WithHooks(h domain.LifecycleHooks) ManagerOption {
	return func(m *Manager) {
		m.hooks = h
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager loading models through backends.
func NewManager(backends *BackendSet, opts ...ManagerOption) *Manager {
	m := &Manager{
		backends:    backends,
		lockTTL:     time.Minute,
		loadTimeout: DefaultLoadTimeout,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = NewRegistry(domain.DefaultMaxModels, WithRegistryLogger(m.logger), WithRegistryHooks(m.hooks))
	}
	return m
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// GetOrLoad returns a lease on the model, loading it if needed. The lease
// pins the model so eviction cannot close it while it is in use; the caller
// MUST Release it.
func (m *Manager) GetOrLoad(ctx context.Context, cfg domain.ModelConfig) (*Lease, error) {
	id := cfg.Name
	if id == "" {
		return nil, fmt.Errorf("%w: empty model name", domain.ErrModelLoad)
	}

	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		if lease, ok := m.registry.Checkout(id); ok {
			return lease, nil
		}

		ch := m.group.DoChan(id, func() (any, error) {
			return nil, m.load(ctx, cfg)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
		}
	}
	return nil, fmt.Errorf("%w: %s was evicted before it could be used", domain.ErrModelLoad, id)
}

// load runs inside the singleflight for cfg.Name. It detaches from the
// caller's cancellation so one impatient caller does not fail the others.
func (m *Manager) load(ctx context.Context, cfg domain.ModelConfig) error {
	id := cfg.Name
	if m.registry.IsLoaded(id) {
		return nil
	}

	backend, err := m.backends.Resolve(cfg)
	if err != nil {
		m.failures.Add(1)
		return &LoadError{ModelID: id, Err: err}
	}

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
	defer cancel()

	if m.locker != nil {
		unlock, err := m.locker.Lock(lctx, "model:"+id, m.lockTTL)
		if err != nil {
			m.failures.Add(1)
			return &LoadError{ModelID: id, Err: fmt.Errorf("failed to acquire distributed lock: %w", err)}
		}
		defer func() {
			if err := unlock(lctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"model_id", id,
					"err", err,
				)
			}
		}()
	}

	start := time.Now()
	m.logger.Info("loading model", "model_id", id, "backend", backend.Kind(), "tier", cfg.Tier, "quantization", cfg.Quantization)
	model, err := backend.Load(lctx, cfg)
	elapsed := time.Since(start)
	if err != nil {
		m.failures.Add(1)
		m.emitLoad(ctx, id, 0, elapsed, err)
		m.logger.Error("model load failed", "model_id", id, "err", err)
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return &LoadError{ModelID: id, Err: err}
	}

	info, err := m.registry.Register(id, cfg, model)
	if errors.Is(err, domain.ErrAlreadyRegistered) {
		// Another replica path registered first; keep the resident copy.
		_ = model.Close()
		return nil
	}
	if err != nil {
		_ = model.Close()
		return err
	}

	m.loads.Add(1)
	m.emitLoad(ctx, id, info.MemoryMB, elapsed, nil)
	m.logger.Info("model loaded", "model_id", id, "memory_mb", info.MemoryMB, "duration", elapsed)
	return nil
}

func (m *Manager) emitLoad(ctx context.Context, id string, mem float64, d time.Duration, err error) {
	if m.hooks.OnModelLoad == nil {
		return
	}
	m.hooks.OnModelLoad(ctx, &domain.ModelEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventModelLoad, CorrelationID: domain.CorrelationID(ctx)},
		ModelID:   id,
		MemoryMB:  mem,
		Duration:  float64(d.Microseconds()) / 1000,
		Err:       err,
	})
}

// IsLoaded reports whether the model is resident.
func (m *Manager) IsLoaded(id string) bool {
	return m.registry.IsLoaded(id)
}

// ListModels returns the resident model ids from least to most recently used.
func (m *Manager) ListModels() []string {
	return m.registry.ListModels()
}

// Unload removes an idle model.
func (m *Manager) Unload(id string) error {
	return m.registry.Unload(id)
}

// Clear unloads every model.
func (m *Manager) Clear() {
	m.registry.Clear()
}

// Stats returns registry and load counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		RegistryStats: m.registry.Stats(),
		Loads:         m.loads.Load(),
		LoadFailures:  m.failures.Load(),
	}
}
