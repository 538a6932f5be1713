package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/mdsa/pkg/domain"
)

const defaultPrefix = "mdsa:"

// Store implements ports.DocumentStore using Redis.
// Documents are JSON values; each corpus keeps a ZSET index scored by sequence.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix for documents and indexes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(id string) string {
	return s.prefix + "doc:" + id
}

func (s *Store) indexKey(scope domain.Scope, domainID string) string {
	if scope == domain.ScopeGlobal {
		return s.prefix + "corpus:global"
	}
	return s.prefix + "corpus:local:" + domainID
}

// Save persists the document and indexes it in its corpus.
func (s *Store) Save(ctx context.Context, doc domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	prev, err := s.load(ctx, doc.ID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	if prev != nil {
		pipe.ZRem(ctx, s.indexKey(prev.Scope, prev.DomainID), doc.ID)
	}
	pipe.Set(ctx, s.key(doc.ID), data, 0)
	pipe.ZAdd(ctx, s.indexKey(doc.Scope, doc.DomainID), backend.Z{
		Score:  float64(doc.Seq),
		Member: doc.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Delete removes the document and its index entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	prev, err := s.load(ctx, id)
	if err != nil || prev == nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(prev.Scope, prev.DomainID), id)

	_, err = pipe.Exec(ctx)
	return err
}

// List returns the documents of one corpus ordered by sequence.
// Index entries whose document vanished are pruned lazily.
func (s *Store) List(ctx context.Context, scope domain.Scope, domainID string) ([]domain.Document, error) {
	index := s.indexKey(scope, domainID)
	ids, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	docs := make([]domain.Document, 0, len(vals))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var d domain.Document
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", ids[i], err)
		}
		docs = append(docs, d)
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, index, stale...)
	}
	return docs, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) load(ctx context.Context, id string) (*domain.Document, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var d domain.Document
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &d, nil
}
