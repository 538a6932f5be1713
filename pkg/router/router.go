// Package router maps natural-language queries to registered domains.
//
// Classification uses an embedding model when one is configured: the query
// vector is compared with precomputed domain vectors and the softmax of the
// cosine similarities becomes the confidence. When no embedder is set, or it
// fails, keyword occurrence counting is used instead.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dgraph-io/ristretto"
	"gonum.org/v1/gonum/floats"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// NoMatch is the domain returned when nothing can be classified.
const NoMatch = ""

// Method names the path that produced a classification.
type Method string

const (
	MethodEmbedding Method = "embedding"
	MethodKeyword   Method = "keyword"
	MethodNone      Method = "none"
)

const (
	// DefaultTemperature sharpens the softmax over cosine similarities.
	DefaultTemperature = 0.05
	// DefaultNullSimilarity is the similarity of the implicit "no domain" class.
	// Queries that resemble no domain more than this stay low-confidence.
	DefaultNullSimilarity = 0.1

	defaultCacheTTL = 10 * time.Minute
)

// Classification is the detailed outcome of Classify.
type Classification struct {
	Domain     string             `json:"domain"`
	Confidence float64            `json:"confidence"`
	Method     Method             `json:"method"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// Stats reports classification counters.
type Stats struct {
	TotalClassifications int64            `json:"total_classifications"`
	Fallbacks            int64            `json:"fallbacks"`
	Unmatched            int64            `json:"unmatched"`
	Domains              map[string]int64 `json:"domains"`
}

type route struct {
	id          string
	description string
	keywords    []string
	vector      []float64
}

// Router classifies queries into registered domains.
type Router struct {
	mu     sync.RWMutex
	routes []*route
	byID   map[string]*route
	stats  Stats

	embedder       ports.Embedder
	cache          *ristretto.Cache
	temperature    float64
	nullSimilarity float64
	logger         *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithEmbedder enables the embedding path.
func WithEmbedder(e ports.Embedder) Option {
	return func(r *Router) {
		r.embedder = e
	}
}

// WithTemperature sets the softmax temperature of the embedding path.
func WithTemperature(t float64) Option {
	return func(r *Router) {
		if t > 0 {
			r.temperature = t
		}
	}
}

// WithNullSimilarity sets the similarity of the implicit "no domain" class.
func WithNullSimilarity(s float64) Option {
	return func(r *Router) {
		r.nullSimilarity = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates an empty router.
func New(opts ...Option) (*Router, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	r := &Router{
		byID:           make(map[string]*route),
		stats:          Stats{Domains: make(map[string]int64)},
		cache:          cache,
		temperature:    DefaultTemperature,
		nullSimilarity: DefaultNullSimilarity,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RegisterDomain adds a routable domain. It fails with domain.ErrDuplicateDomain
// if id is already registered. The domain vector is computed from the
// description and keywords when an embedder is configured.
func (r *Router) RegisterDomain(ctx context.Context, id, description string, keywords []string) error {
	if id == "" {
		return fmt.Errorf("register domain: empty id")
	}

	rt := &route{id: id, description: description}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			rt.keywords = append(rt.keywords, kw)
		}
	}
	if r.embedder != nil {
		text := description + " " + strings.Join(rt.keywords, " ")
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			r.logger.Warn("domain embedding failed, keyword routing only", "domain", id, "err", err)
		} else {
			rt.vector = vec
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateDomain, id)
	}
	r.byID[id] = rt
	r.routes = append(r.routes, rt)
	r.stats.Domains[id] = 0
	return nil
}

// Classify returns the best domain and its confidence in [0,1].
// It never fails: when nothing matches it returns NoMatch with zero confidence.
func (r *Router) Classify(ctx context.Context, query string) (string, float64) {
	c := r.ClassifyDetailed(ctx, query)
	return c.Domain, c.Confidence
}

// ClassifyDetailed is Classify with per-domain scores and the method used.
func (r *Router) ClassifyDetailed(ctx context.Context, query string) Classification {
	r.mu.RLock()
	routes := append([]*route(nil), r.routes...)
	r.mu.RUnlock()

	c := Classification{Domain: NoMatch, Method: MethodNone}
	if len(routes) > 0 {
		if emb, ok := r.classifyEmbedding(ctx, query, routes); ok {
			c = emb
		} else {
			c = classifyKeywords(query, routes)
		}
	}

	r.mu.Lock()
	r.stats.TotalClassifications++
	if c.Method == MethodKeyword {
		r.stats.Fallbacks++
	}
	if c.Domain == NoMatch {
		r.stats.Unmatched++
	} else {
		r.stats.Domains[c.Domain]++
	}
	r.mu.Unlock()

	r.logger.Debug("query classified", "domain", c.Domain, "confidence", c.Confidence, "method", c.Method)
	return c
}

func (r *Router) classifyEmbedding(ctx context.Context, query string, routes []*route) (Classification, bool) {
	if r.embedder == nil {
		return Classification{}, false
	}
	for _, rt := range routes {
		if rt.vector == nil {
			return Classification{}, false
		}
	}
	qv, err := r.embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, falling back to keywords", "err", err)
		return Classification{}, false
	}

	sims := make([]float64, len(routes))
	for i, rt := range routes {
		sims[i] = cosine(qv, rt.vector)
	}

	// Softmax over the similarities plus the implicit null class.
	logits := append(append([]float64(nil), sims...), r.nullSimilarity)
	floats.Scale(1/r.temperature, logits)
	maxLogit := floats.Max(logits)
	for i := range logits {
		logits[i] = math.Exp(logits[i] - maxLogit)
	}
	floats.Scale(1/floats.Sum(logits), logits)

	probs := logits[:len(routes)]
	best := floats.MaxIdx(probs)
	scores := make(map[string]float64, len(routes))
	for i, rt := range routes {
		scores[rt.id] = sims[i]
	}
	return Classification{
		Domain:     routes[best].id,
		Confidence: probs[best],
		Method:     MethodEmbedding,
		Scores:     scores,
	}, true
}

func (r *Router) embed(ctx context.Context, query string) ([]float64, error) {
	if v, ok := r.cache.Get(query); ok {
		if vec, ok := v.([]float64); ok {
			return vec, nil
		}
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	r.cache.SetWithTTL(query, vec, int64(len(vec)*8), defaultCacheTTL)
	return vec, nil
}

// classifyKeywords scores each domain by keyword occurrences. The confidence
// is the winner's share of all matches, damped when it matched only once.
// Ties go to the domain registered first.
func classifyKeywords(query string, routes []*route) Classification {
	lower := strings.ToLower(query)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	scores := make(map[string]float64, len(routes))
	total, bestScore, best := 0.0, 0.0, -1
	for i, rt := range routes {
		n := 0.0
		for _, kw := range rt.keywords {
			n += float64(countKeyword(lower, tokens, kw))
		}
		scores[rt.id] = n
		total += n
		if n > bestScore {
			bestScore, best = n, i
		}
	}
	if best < 0 {
		return Classification{Domain: NoMatch, Method: MethodKeyword, Scores: scores}
	}
	conf := (bestScore / total) * math.Min(1, 0.5+0.25*bestScore)
	return Classification{
		Domain:     routes[best].id,
		Confidence: conf,
		Method:     MethodKeyword,
		Scores:     scores,
	}
}

// countKeyword counts word-prefix matches for alphanumeric keywords
// ("transfer" matches "transfers") and substring matches otherwise ("$", "icd-10").
func countKeyword(lower string, tokens []string, kw string) int {
	alnum := true
	for _, r := range kw {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			alnum = false
			break
		}
	}
	if !alnum {
		return strings.Count(lower, kw)
	}
	n := 0
	for _, t := range tokens {
		if strings.HasPrefix(t, kw) {
			n++
		}
	}
	return n
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// Domains lists registered domain ids in registration order.
func (r *Router) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, rt.id)
	}
	return out
}

// HasDomain reports whether id is registered.
func (r *Router) HasDomain(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// DomainStats returns a copy of the classification counters.
func (r *Router) DomainStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.stats
	s.Domains = make(map[string]int64, len(r.stats.Domains))
	for k, v := range r.stats.Domains {
		s.Domains[k] = v
	}
	return s
}

// TopDomains returns registered ids ordered by classification count (descending).
func (r *Router) TopDomains() []string {
	s := r.DomainStats()
	ids := r.Domains()
	sort.SliceStable(ids, func(i, j int) bool { return s.Domains[ids[i]] > s.Domains[ids[j]] })
	return ids
}

// Close releases the embedding cache.
func (r *Router) Close() {
	r.cache.Close()
}

// ResetStats zeroes the classification counters.
func (r *Router) ResetStats() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = Stats{Domains: make(map[string]int64, len(r.routes))}
	for _, rt := range r.routes {
		r.stats.Domains[rt.id] = 0
	}
}

// MatchSimilarity is the cosine similarity above which a domain counts as
// matched by the embedding path.
const MatchSimilarity = 0.2

// Matched counts the domains the query plausibly touched: domains with a
// keyword hit, or with similarity above MatchSimilarity.
func (c Classification) Matched() int {
	n := 0
	for _, s := range c.Scores {
		if (c.Method == MethodKeyword && s > 0) || (c.Method == MethodEmbedding && s > MatchSimilarity) {
			n++
		}
	}
	return n
}
