package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// EnvelopeKey marks a document whose body is sealed.
const EnvelopeKey = "__encrypted__"

const envelopeVersion = "v1"

// ErrNotEncrypted is returned when a listed document has no envelope.
var ErrNotEncrypted = errors.New("document is missing encrypted envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new documents. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a document.
	FallbackKeys [][]byte
}

// sealed is the encrypted part of a document. Identity, scope and ordering
// stay in clear so the store can still list by corpus.
type sealed struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.DocumentStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals document content, metadata and tags with AES-GCM.
// It panics unless every key is 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			panic("fallback keys must be 32 bytes (AES-256)")
		}
	}
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, doc domain.Document) error {
	plainText, err := json.Marshal(sealed{Content: doc.Content, Metadata: doc.Metadata, Tags: doc.Tags})
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt document: %w", err)
	}

	envelope := doc
	envelope.Content = base64.StdEncoding.EncodeToString(ciphertext)
	envelope.Metadata = map[string]string{EnvelopeKey: envelopeVersion}
	envelope.Tags = nil
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context, scope domain.Scope, domainID string) ([]domain.Document, error) {
	envelopes, err := m.next.List(ctx, scope, domainID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(envelopes))
	for _, env := range envelopes {
		doc, err := m.open(env)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", env.ID, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func (m *encryptionMiddleware) open(env domain.Document) (domain.Document, error) {
	if env.Metadata[EnvelopeKey] == "" {
		return domain.Document{}, ErrNotEncrypted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Content)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to decrypt document: %w", err)
	}
	var body sealed
	if err := json.Unmarshal(plainText, &body); err != nil {
		return domain.Document{}, fmt.Errorf("failed to unmarshal decrypted document: %w", err)
	}

	doc := env
	doc.Content = body.Content
	doc.Metadata = body.Metadata
	doc.Tags = body.Tags
	return doc, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
