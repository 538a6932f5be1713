package ports

import (
	"context"

	"github.com/aretw0/mdsa/pkg/domain"
)

// DocumentStore persists knowledge documents so a retrieval store can be rebuilt on restart.
// The in-memory index remains the source of ranking; the store is the source of durability.
type DocumentStore interface {
	// Save persists a document. Saving an existing id overwrites it.
	Save(ctx context.Context, doc domain.Document) error

	// Delete removes a document by id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the documents of one corpus ordered by insertion sequence.
	// For domain.ScopeGlobal the domainID is ignored.
	List(ctx context.Context, scope domain.Scope, domainID string) ([]domain.Document, error)
}
