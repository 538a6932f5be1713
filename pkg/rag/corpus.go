package rag

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/aretw0/mdsa/pkg/domain"
)

const contentField = "content"

// Corpus is one bounded collection of documents with a full-text index.
// When full, the oldest inserted document is evicted first.
// Safe for concurrent use.
type Corpus struct {
	mu      sync.RWMutex
	name    string
	index   bleve.Index
	docs    map[string]domain.Document
	fifo    []string
	maxDocs int
}

// NewCorpus creates an empty in-memory corpus. maxDocs <= 0 means unbounded.
func NewCorpus(name string, maxDocs int) (*Corpus, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index for corpus %s: %w", name, err)
	}
	return &Corpus{
		name:    name,
		index:   idx,
		docs:    make(map[string]domain.Document),
		maxDocs: maxDocs,
	}, nil
}

// Add indexes doc and returns the documents evicted to make room for it.
func (c *Corpus) Add(doc domain.Document) ([]domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[doc.ID]; exists {
		return nil, fmt.Errorf("corpus %s: duplicate document id %s", c.name, doc.ID)
	}
	if err := c.index.Index(doc.ID, map[string]any{contentField: doc.Content}); err != nil {
		return nil, fmt.Errorf("corpus %s: index document %s: %w", c.name, doc.ID, err)
	}
	c.docs[doc.ID] = doc
	c.fifo = append(c.fifo, doc.ID)

	var evicted []domain.Document
	for c.maxDocs > 0 && len(c.fifo) > c.maxDocs {
		oldest := c.fifo[0]
		c.fifo = c.fifo[1:]
		if d, ok := c.docs[oldest]; ok {
			evicted = append(evicted, d)
		}
		delete(c.docs, oldest)
		if err := c.index.Delete(oldest); err != nil {
			return evicted, fmt.Errorf("corpus %s: unindex document %s: %w", c.name, oldest, err)
		}
	}
	return evicted, nil
}

// Search returns up to topK documents ranked by descending relevance to
// query. Equal scores keep insertion order. Only documents carrying every tag
// in tags are considered. Documents with no lexical overlap are not returned.
func (c *Corpus) Search(query string, topK int, tags []string) (domain.RetrievalResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	res := domain.RetrievalResult{Documents: []domain.Document{}, Scores: []float64{}}
	if len(c.docs) == 0 {
		return res, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(contentField)
	req := bleve.NewSearchRequestOptions(q, len(c.docs), 0, false)
	sr, err := c.index.Search(req)
	if err != nil {
		return res, fmt.Errorf("corpus %s: search: %w", c.name, err)
	}

	type hit struct {
		doc   domain.Document
		score float64
	}
	hits := make([]hit, 0, len(sr.Hits))
	for _, h := range sr.Hits {
		d, ok := c.docs[h.ID]
		if !ok || !d.HasTags(tags) {
			continue
		}
		hits = append(hits, hit{doc: d, score: h.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].doc.Seq < hits[j].doc.Seq
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	for _, h := range hits {
		res.Documents = append(res.Documents, h.doc)
		res.Scores = append(res.Scores, h.score)
	}
	return res, nil
}

// Get returns a document by id.
func (c *Corpus) Get(id string) (domain.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	return d, ok
}

// Documents returns every document in insertion order.
func (c *Corpus) Documents() []domain.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Document, 0, len(c.fifo))
	for _, id := range c.fifo {
		out = append(out, c.docs[id])
	}
	return out
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// MaxDocs returns the capacity (0 when unbounded).
func (c *Corpus) MaxDocs() int {
	return c.maxDocs
}

// Close releases the index.
func (c *Corpus) Close() error {
	return c.index.Close()
}
