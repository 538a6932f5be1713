package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Store implements ports.DocumentStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Document
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Document),
	}
}

// Save persists a copy of the document.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[doc.ID] = clone(doc)
	return nil
}

// Delete removes the document.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the documents of one corpus ordered by sequence.
func (s *Store) List(ctx context.Context, scope domain.Scope, domainID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, d := range s.data {
		if d.Scope != scope {
			continue
		}
		if scope == domain.ScopeLocal && d.DomainID != domainID {
			continue
		}
		docs = append(docs, clone(d))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// clone copies the reference fields so callers can't mutate stored documents.
func clone(d domain.Document) domain.Document {
	if d.Metadata != nil {
		md := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			md[k] = v
		}
		d.Metadata = md
	}
	d.Tags = append([]string(nil), d.Tags...)
	return d
}
