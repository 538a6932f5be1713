// Package rag implements the two-tier retrieval store: one global corpus
// shared by every domain and one isolated local corpus per domain.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// RetrieveOptions selects the tiers searched by Retrieve.
// The zero value searches both tiers with domain.DefaultTopK.
type RetrieveOptions struct {
	SkipLocal  bool
	SkipGlobal bool
	// TopK applies to each tier independently.
	TopK int
	Tags []string
}

// Retrieval holds the ranked results of both tiers.
type Retrieval struct {
	Local  domain.RetrievalResult `json:"local"`
	Global domain.RetrievalResult `json:"global"`
}

// Documents returns local results followed by global ones.
func (r Retrieval) Documents() []domain.Document {
	out := make([]domain.Document, 0, r.Local.Len()+r.Global.Len())
	out = append(out, r.Local.Documents...)
	return append(out, r.Global.Documents...)
}

// CorpusStats describes one corpus.
type CorpusStats struct {
	DocumentCount int `json:"document_count"`
	MaxDocuments  int `json:"max_documents"`
}

// Stats describes the whole store.
type Stats struct {
	GlobalRAG CorpusStats            `json:"global_rag"`
	LocalRAGs map[string]CorpusStats `json:"local_rags"`
	Domains   int                    `json:"domains"`
	Retrieves int64                  `json:"retrieves"`
}

// DualRAG is the two-tier retrieval store.
//
// Local corpora are strictly isolated: a document added to one domain is
// never returned for another. The global corpus is readable by every domain.
type DualRAG struct {
	mu     sync.RWMutex
	global *Corpus
	locals map[string]*Corpus

	maxGlobal int
	maxLocal  int
	store     ports.DocumentStore

	seq       atomic.Uint64
	retrieves atomic.Int64

	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a DualRAG.
type Option func(*DualRAG)

// WithMaxGlobalDocs bounds the global corpus.
func WithMaxGlobalDocs(n int) Option {
	return func(r *DualRAG) {
		r.maxGlobal = n
	}
}

// WithMaxLocalDocs bounds each local corpus.
func WithMaxLocalDocs(n int) Option {
	return func(r *DualRAG) {
		r.maxLocal = n
	}
}

// WithStore persists documents so they can be restored with Restore.
func WithStore(s ports.DocumentStore) Option {
	return func(r *DualRAG) {
		r.store = s
	}
}

// WithHooks installs retrieval hooks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(r *DualRAG) {
		r.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *DualRAG) {
		r.logger = l
	}
}

// New creates an empty store.
func New(opts ...Option) (*DualRAG, error) {
	r := &DualRAG{
		locals:    make(map[string]*Corpus),
		maxGlobal: domain.DefaultMaxGlobalDocs,
		maxLocal:  domain.DefaultMaxLocalDocs,
		logger:    logging.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	g, err := NewCorpus("global", r.maxGlobal)
	if err != nil {
		return nil, err
	}
	r.global = g
	return r, nil
}

// RegisterDomain creates the local corpus of domainID. It is idempotent.
func (r *DualRAG) RegisterDomain(domainID string) error {
	if domainID == "" {
		return fmt.Errorf("register domain: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locals[domainID]; ok {
		return nil
	}
	c, err := NewCorpus("local:"+domainID, r.maxLocal)
	if err != nil {
		return err
	}
	r.locals[domainID] = c
	r.logger.Debug("local corpus registered", "domain", domainID)
	return nil
}

// HasDomain reports whether domainID has a local corpus.
func (r *DualRAG) HasDomain(domainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.locals[domainID]
	return ok
}

// Domains lists the registered domains in lexical order.
func (r *DualRAG) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.locals))
	for id := range r.locals {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddToGlobal stores a document readable by every domain and returns its id.
func (r *DualRAG) AddToGlobal(ctx context.Context, content string, metadata map[string]string, tags []string) (string, error) {
	doc := r.newDocument(content, metadata, tags, domain.ScopeGlobal, "")
	return doc.ID, r.insert(ctx, r.global, doc)
}

// AddToLocal stores a document visible only to domainID and returns its id.
// It fails with domain.ErrUnknownDomain if domainID was not registered.
func (r *DualRAG) AddToLocal(ctx context.Context, domainID, content string, metadata map[string]string, tags []string) (string, error) {
	c, err := r.local(domainID)
	if err != nil {
		return "", err
	}
	doc := r.newDocument(content, metadata, tags, domain.ScopeLocal, domainID)
	return doc.ID, r.insert(ctx, c, doc)
}

func (r *DualRAG) local(domainID string) (*Corpus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.locals[domainID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, domainID)
	}
	return c, nil
}

func (r *DualRAG) newDocument(content string, metadata map[string]string, tags []string, scope domain.Scope, domainID string) domain.Document {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return domain.Document{
		ID:        r.newID(),
		Content:   content,
		Metadata:  md,
		Tags:      append([]string(nil), tags...),
		Scope:     scope,
		DomainID:  domainID,
		Seq:       r.seq.Add(1),
		CreatedAt: r.now(),
	}
}

func (r *DualRAG) insert(ctx context.Context, c *Corpus, doc domain.Document) error {
	if r.store != nil {
		if err := r.store.Save(ctx, doc); err != nil {
			return fmt.Errorf("persist document: %w", err)
		}
	}
	evicted, err := c.Add(doc)
	if err != nil {
		return err
	}
	r.forget(ctx, evicted)
	return nil
}

func (r *DualRAG) forget(ctx context.Context, evicted []domain.Document) {
	for _, d := range evicted {
		r.logger.Debug("document evicted", "doc_id", d.ID, "scope", d.Scope, "domain", d.DomainID)
		if r.store == nil {
			continue
		}
		if err := r.store.Delete(ctx, d.ID); err != nil {
			r.logger.Warn("failed to delete evicted document", "doc_id", d.ID, "err", err)
		}
	}
}

// Retrieve searches the local corpus of domainID and the global corpus.
// Searching the local tier of an unregistered domain fails with domain.ErrUnknownDomain.
func (r *DualRAG) Retrieve(ctx context.Context, query, domainID string, opts RetrieveOptions) (Retrieval, error) {
	start := time.Now()
	out := Retrieval{
		Local:  domain.RetrievalResult{Documents: []domain.Document{}, Scores: []float64{}},
		Global: domain.RetrievalResult{Documents: []domain.Document{}, Scores: []float64{}},
	}

	if !opts.SkipLocal {
		c, err := r.local(domainID)
		if err != nil {
			return out, err
		}
		t := time.Now()
		res, err := c.Search(query, opts.TopK, opts.Tags)
		if err != nil {
			return out, err
		}
		res.RetrievalTimeMS = msSince(t)
		out.Local = res
	}
	if !opts.SkipGlobal {
		t := time.Now()
		res, err := r.global.Search(query, opts.TopK, opts.Tags)
		if err != nil {
			return out, err
		}
		res.RetrievalTimeMS = msSince(t)
		out.Global = res
	}

	r.retrieves.Add(1)
	if r.hooks.OnRetrieve != nil {
		r.hooks.OnRetrieve(ctx, &domain.RetrievalEvent{
			EventBase: domain.EventBase{Timestamp: r.now(), Type: domain.EventRetrieve, CorrelationID: domain.CorrelationID(ctx)},
			DomainID:  domainID,
			Local:     out.Local.Len(),
			Global:    out.Global.Len(),
			LatencyMS: msSince(start),
		})
	}
	return out, nil
}

// Restore reloads the global corpus and every registered local corpus from the store.
// Domains must be registered before Restore is called.
func (r *DualRAG) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}

	restored := 0
	load := func(c *Corpus, scope domain.Scope, domainID string) error {
		docs, err := r.store.List(ctx, scope, domainID)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if _, ok := c.Get(d.ID); ok {
				continue
			}
			evicted, err := c.Add(d)
			if err != nil {
				return err
			}
			r.forget(ctx, evicted)
			restored++
			for {
				cur := r.seq.Load()
				if d.Seq <= cur || r.seq.CompareAndSwap(cur, d.Seq) {
					break
				}
			}
		}
		return nil
	}

	var errs []error
	if err := load(r.global, domain.ScopeGlobal, ""); err != nil {
		errs = append(errs, fmt.Errorf("restore global corpus: %w", err))
	}
	for _, id := range r.Domains() {
		c, _ := r.local(id)
		if err := load(c, domain.ScopeLocal, id); err != nil {
			errs = append(errs, fmt.Errorf("restore corpus %s: %w", id, err))
		}
	}
	r.logger.Info("retrieval store restored", "documents", restored)
	return restored, errors.Join(errs...)
}

// Stats returns document counts per corpus.
func (r *DualRAG) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		GlobalRAG: CorpusStats{DocumentCount: r.global.Len(), MaxDocuments: r.global.MaxDocs()},
		LocalRAGs: make(map[string]CorpusStats, len(r.locals)),
		Domains:   len(r.locals),
		Retrieves: r.retrieves.Load(),
	}
	for id, c := range r.locals {
		s.LocalRAGs[id] = CorpusStats{DocumentCount: c.Len(), MaxDocuments: c.MaxDocs()}
	}
	return s
}

// Close releases every index.
func (r *DualRAG) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := []error{r.global.Close()}
	for _, c := range r.locals {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
