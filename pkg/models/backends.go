package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// BackendSet maps backend kinds to their implementation.
// The backend of a model is chosen once from its ModelConfig.Backend.
type BackendSet struct {
	mu       sync.RWMutex
	backends map[domain.BackendKind]ports.ModelBackend
	fallback domain.BackendKind
}

// NewBackendSet creates a set with the given backends. The first one is the
// fallback used for configs that leave Backend empty.
func NewBackendSet(backends ...ports.ModelBackend) *BackendSet {
	s := &BackendSet{
		backends: make(map[domain.BackendKind]ports.ModelBackend),
	}
	for _, b := range backends {
		s.Register(b)
	}
	return s
}

// Register adds a backend. If a backend of the same kind exists, it is overwritten.
func (s *BackendSet) Register(b ports.ModelBackend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallback == "" {
		s.fallback = b.Kind()
	}
	s.backends[b.Kind()] = b
}

// Resolve returns the backend serving cfg.
func (s *BackendSet) Resolve(cfg domain.ModelConfig) (ports.ModelBackend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kind := cfg.Backend
	if kind == "" {
		kind = s.fallback
	}
	b, ok := s.backends[kind]
	if !ok {
		return nil, fmt.Errorf("no backend registered for %q (model %s)", kind, cfg.Name)
	}
	return b, nil
}

// Kinds lists the registered backend kinds.
func (s *BackendSet) Kinds() []domain.BackendKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.BackendKind, 0, len(s.backends))
	for k := range s.backends {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
