package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/persistence/middleware"
	"github.com/aretw0/mdsa/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func newDoc(id string, seq uint64) domain.Document {
	return domain.Document{
		ID:        id,
		Content:   "Wire transfers over 10k need manager approval",
		Metadata:  map[string]string{"source": "policy"},
		Tags:      []string{"policy"},
		Scope:     domain.ScopeLocal,
		DomainID:  "finance",
		Seq:       seq,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunDocumentStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	doc := newDoc("doc-1", 1)
	require.NoError(t, secure.Save(ctx, doc))

	raw, err := underlying.List(ctx, domain.ScopeLocal, "finance")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.NotContains(t, raw[0].Content, "manager approval")
	assert.Equal(t, "v1", raw[0].Metadata[middleware.EnvelopeKey])
	assert.Empty(t, raw[0].Tags)
	assert.Equal(t, doc.Seq, raw[0].Seq, "ordering stays in clear")

	docs, err := secure.List(ctx, domain.ScopeLocal, "finance")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Content, docs[0].Content)
	assert.Equal(t, doc.Metadata, docs[0].Metadata)
	assert.Equal(t, doc.Tags, docs[0].Tags)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.Save(ctx, newDoc("doc-1", 1)))

	newStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	docs, err := newStore.List(ctx, domain.ScopeLocal, "finance")
	require.NoError(t, err, "fallback key opens old documents")
	require.Len(t, docs, 1)

	require.NoError(t, newStore.Save(ctx, newDoc("doc-2", 2)))
	_, err = oldStore.List(ctx, domain.ScopeLocal, "finance")
	assert.Error(t, err, "old key cannot open documents sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlainDocuments(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, newDoc("plain", 1)))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.List(ctx, domain.ScopeLocal, "finance")
	assert.ErrorIs(t, err, middleware.ErrNotEncrypted)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
