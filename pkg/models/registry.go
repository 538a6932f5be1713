package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// RegistryStats summarizes the resident models.
type RegistryStats struct {
	ModelsLoaded  int     `json:"models_loaded"`
	MaxModels     int     `json:"max_models"`
	TotalMemoryMB float64 `json:"total_memory_mb"`
	MaxMemoryMB   float64 `json:"max_memory_mb,omitempty"`
	TotalUses     int64   `json:"total_uses"`
	Evictions     int64   `json:"evictions"`
	Pinned        int     `json:"pinned"`
}

type entry struct {
	info  domain.ModelInfo
	model ports.LoadedModel
	pins  int
}

// Registry is a thread-safe map of resident models with LRU eviction.
//
// Access order is tracked by an LRU list: Register and every Get/Checkout
// move the model to the most recent position. When the cap is reached the
// oldest idle (unpinned) model is evicted. Ties between models with equal
// timestamps are therefore resolved by access sequence, and models that were
// never accessed after registration by registration order.
type Registry struct {
	mu          sync.Mutex
	order       *simplelru.LRU[string, *entry]
	maxModels   int
	maxMemoryMB float64
	memoryMB    float64
	evictions   int64

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxMemoryMB sets a memory budget. Zero disables the budget.
func WithMaxMemoryMB(mb float64) RegistryOption {
	return func(r *Registry) {
		r.maxMemoryMB = mb
	}
}

// WithRegistryHooks installs eviction hooks.
func WithRegistryHooks(h domain.LifecycleHooks) RegistryOption {
	return func(r *Registry) {
		r.hooks = h
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry holding at most maxModels idle models.
// maxModels <= 0 selects domain.DefaultMaxModels.
func NewRegistry(maxModels int, opts ...RegistryOption) *Registry {
	if maxModels <= 0 {
		maxModels = domain.DefaultMaxModels
	}
	// Capacity is enforced by evictLocked so pinned entries can be skipped.
	order, _ := simplelru.NewLRU[string, *entry](math.MaxInt32, nil)
	r := &Registry{
		order:     order,
		maxModels: maxModels,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a loaded model, evicting idle models first if needed.
// It fails with domain.ErrAlreadyRegistered if id is resident.
func (r *Registry) Register(id string, cfg domain.ModelConfig, model ports.LoadedModel) (domain.ModelInfo, error) {
	r.mu.Lock()
	if r.order.Contains(id) {
		r.mu.Unlock()
		return domain.ModelInfo{}, fmt.Errorf("%w: %s", domain.ErrAlreadyRegistered, id)
	}

	mem := model.MemoryMB()
	var victims []*entry
	for r.order.Len() >= r.maxModels {
		e := r.evictOldestLocked()
		if e == nil {
			break
		}
		victims = append(victims, e)
	}
	for r.maxMemoryMB > 0 && r.memoryMB+mem > r.maxMemoryMB {
		e := r.evictOldestLocked()
		if e == nil {
			break
		}
		victims = append(victims, e)
	}
	if r.order.Len() >= r.maxModels || (r.maxMemoryMB > 0 && r.memoryMB+mem > r.maxMemoryMB) {
		r.logger.Warn("registry over capacity, all resident models are pinned",
			"model_id", id, "loaded", r.order.Len(), "memory_mb", r.memoryMB)
	}

	now := r.now()
	e := &entry{
		info: domain.ModelInfo{
			ModelID:  id,
			Config:   cfg,
			Model:    model,
			MemoryMB: mem,
			LastUsed: now,
			LoadedAt: now,
		},
		model: model,
	}
	r.order.Add(id, e)
	r.memoryMB += mem
	info := e.info
	r.mu.Unlock()

	r.closeVictims(victims)
	return info, nil
}

// Get returns a snapshot of the model and records an access.
func (r *Registry) Get(id string) (domain.ModelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.touchLocked(id)
	if !ok {
		return domain.ModelInfo{}, false
	}
	return e.info, true
}

// Checkout records an access and pins the model until the lease is released.
func (r *Registry) Checkout(id string) (*Lease, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.touchLocked(id)
	if !ok {
		return nil, false
	}
	e.pins++
	return &Lease{registry: r, entry: e, info: e.info}, true
}

func (r *Registry) touchLocked(id string) (*entry, bool) {
	e, ok := r.order.Get(id)
	if !ok {
		return nil, false
	}
	e.info.UseCount++
	e.info.LastUsed = r.now()
	return e, true
}

// Peek returns a snapshot without recording an access.
func (r *Registry) Peek(id string) (domain.ModelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.order.Peek(id)
	if !ok {
		return domain.ModelInfo{}, false
	}
	return e.info, true
}

// IsLoaded reports whether id is resident.
func (r *Registry) IsLoaded(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Contains(id)
}

// ListModels returns the resident ids from least to most recently used.
func (r *Registry) ListModels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Keys()
}

// Len returns the number of resident models.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// Stats returns a snapshot of registry counters.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := RegistryStats{
		ModelsLoaded:  r.order.Len(),
		MaxModels:     r.maxModels,
		TotalMemoryMB: r.memoryMB,
		MaxMemoryMB:   r.maxMemoryMB,
		Evictions:     r.evictions,
	}
	for _, id := range r.order.Keys() {
		e, _ := r.order.Peek(id)
		s.TotalUses += e.info.UseCount
		if e.pins > 0 {
			s.Pinned++
		}
	}
	return s
}

// Unload removes an idle model and closes it.
func (r *Registry) Unload(id string) error {
	r.mu.Lock()
	e, ok := r.order.Peek(id)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrModelNotFound, id)
	}
	if e.pins > 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrModelInUse, id)
	}
	r.removeLocked(id, e)
	r.mu.Unlock()

	r.closeVictims([]*entry{e})
	return nil
}

// Clear unloads every model. Outstanding leases become detached and their
// Release is a no-op for capacity accounting.
func (r *Registry) Clear() {
	r.mu.Lock()
	var victims []*entry
	for _, id := range r.order.Keys() {
		e, _ := r.order.Peek(id)
		victims = append(victims, e)
	}
	r.order.Purge()
	r.memoryMB = 0
	r.mu.Unlock()

	r.closeVictims(victims)
}

// evictOldestLocked removes the least recently used unpinned entry.
func (r *Registry) evictOldestLocked() *entry {
	for _, id := range r.order.Keys() {
		e, _ := r.order.Peek(id)
		if e.pins > 0 {
			continue
		}
		r.removeLocked(id, e)
		r.evictions++
		r.logger.Info("model evicted", "model_id", id, "memory_mb", e.info.MemoryMB, "use_count", e.info.UseCount)
		return e
	}
	return nil
}

func (r *Registry) removeLocked(id string, e *entry) {
	r.order.Remove(id)
	r.memoryMB -= e.info.MemoryMB
	if r.memoryMB < 0 {
		r.memoryMB = 0
	}
}

func (r *Registry) closeVictims(victims []*entry) {
	for _, e := range victims {
		if err := e.model.Close(); err != nil {
			r.logger.Warn("failed to close model", "model_id", e.info.ModelID, "err", err)
		}
		if r.hooks.OnModelEvict != nil {
			r.hooks.OnModelEvict(context.Background(), &domain.ModelEvent{
				EventBase: domain.EventBase{Timestamp: r.now(), Type: domain.EventModelEvict},
				ModelID:   e.info.ModelID,
				MemoryMB:  e.info.MemoryMB,
			})
		}
	}
}

// release unpins e and trims the registry if it grew past its cap while pinned.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	if e.pins > 0 {
		e.pins--
	}
	var victims []*entry
	for r.order.Len() > r.maxModels || (r.maxMemoryMB > 0 && r.memoryMB > r.maxMemoryMB) {
		v := r.evictOldestLocked()
		if v == nil {
			break
		}
		victims = append(victims, v)
	}
	r.mu.Unlock()

	r.closeVictims(victims)
}

// Lease is a pinned checkout of a resident model.
type Lease struct {
	registry *Registry
	entry    *entry
	info     domain.ModelInfo
	once     sync.Once
}

// Info returns the model snapshot taken at checkout.
func (l *Lease) Info() domain.ModelInfo {
	return l.info
}

// Model returns the loaded model handle.
func (l *Lease) Model() ports.LoadedModel {
	return l.entry.model
}

// Release unpins the model. It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.registry.release(l.entry)
	})
}
