package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := middleware.NewPIIMiddleware(middleware.PIIConfig{
		MetadataKeys:    []string{"email", "ssn"},
		ContentPatterns: middleware.DefaultContentPatterns,
	})(underlying)

	doc := domain.Document{
		ID:       "pii-1",
		Content:  "Customer jane@example.com disputed card 4111 1111 1111 1111, SSN 999-99-9999",
		Metadata: map[string]string{"author_email": "jane@example.com", "source": "ticket"},
		Scope:    domain.ScopeLocal,
		DomainID: "support",
		Seq:      1,
	}
	require.NoError(t, secure.Save(ctx, doc))

	assert.Equal(t, "jane@example.com", doc.Metadata["author_email"], "caller's document is untouched")

	docs, err := underlying.List(ctx, domain.ScopeLocal, "support")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	stored := docs[0]

	assert.Equal(t, middleware.Mask, stored.Metadata["author_email"])
	assert.Equal(t, "ticket", stored.Metadata["source"])
	assert.NotContains(t, stored.Content, "jane@example.com")
	assert.NotContains(t, stored.Content, "999-99-9999")
	assert.NotContains(t, stored.Content, "4111")
	assert.Contains(t, stored.Content, "Customer")
}

func TestChain_RedactsBeforeEncrypting(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware(middleware.PIIConfig{ContentPatterns: middleware.DefaultContentPatterns}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)

	require.NoError(t, store.Save(ctx, domain.Document{
		ID:      "g-1",
		Content: "Escalations go to ops@example.com",
		Scope:   domain.ScopeGlobal,
		Seq:     1,
	}))

	docs, err := store.List(ctx, domain.ScopeGlobal, "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Escalations go to ***", docs[0].Content)
}
