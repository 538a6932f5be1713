package ports_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// MockStore is a map-backed DocumentStore used to validate the contract itself.
type MockStore struct {
	mu   sync.Mutex
	data map[string]domain.Document
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]domain.Document)}
}

func (m *MockStore) Save(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[doc.ID] = doc
	return nil
}

func (m *MockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *MockStore) List(_ context.Context, scope domain.Scope, domainID string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Document
	for _, d := range m.data {
		if d.Scope != scope || (scope == domain.ScopeLocal && d.DomainID != domainID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func TestDocumentStore_Contract(t *testing.T) {
	ports.RunDocumentStoreContract(t, NewMockStore())
}
