package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// Responder produces the text of a generation for a model.
type Responder func(model string, req ports.GenerateRequest) string

// Backend implements ports.ModelBackend with deterministic in-process models.
// It is the default backend for development and tests.
// Safe for concurrent use.
type Backend struct {
	loadDelay     time.Duration
	generateDelay time.Duration
	responder     Responder
	failures      map[string]error

	mu     sync.Mutex
	loads  map[string]int
	closed map[string]int
	total  atomic.Int64
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithLoadDelay simulates slow model loading.
func WithLoadDelay(d time.Duration) BackendOption {
	return func(b *Backend) {
		b.loadDelay = d
	}
}

// WithGenerateDelay simulates slow generation.
func WithGenerateDelay(d time.Duration) BackendOption {
	return func(b *Backend) {
		b.generateDelay = d
	}
}

// WithResponder overrides the generated text.
func WithResponder(r Responder) BackendOption {
	return func(b *Backend) {
		b.responder = r
	}
}

// WithLoadFailure makes every load of model fail with err.
func WithLoadFailure(model string, err error) BackendOption {
	return func(b *Backend) {
		b.failures[model] = err
	}
}

// NewBackend creates an in-process backend.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		responder: EchoResponder,
		failures:  make(map[string]error),
		loads:     make(map[string]int),
		closed:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind implements ports.ModelBackend.
func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendMemory
}

// Load implements ports.ModelBackend.
func (b *Backend) Load(ctx context.Context, cfg domain.ModelConfig) (ports.LoadedModel, error) {
	if err := sleep(ctx, b.loadDelay); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.loads[cfg.Name]++
	failure := b.failures[cfg.Name]
	b.mu.Unlock()
	b.total.Add(1)

	if failure != nil {
		return nil, failure
	}
	return &model{backend: b, cfg: cfg, memoryMB: EstimateMemoryMB(cfg)}, nil
}

// SetLoadFailure installs or clears (err == nil) a load failure at runtime.
func (b *Backend) SetLoadFailure(model string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, model)
		return
	}
	b.failures[model] = err
}

// Loads returns how many times model was loaded.
func (b *Backend) Loads(model string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads[model]
}

// TotalLoads returns the number of load attempts across all models.
func (b *Backend) TotalLoads() int64 {
	return b.total.Load()
}

// Closed returns how many times model was closed (unloaded or evicted).
func (b *Backend) Closed(model string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed[model]
}

type model struct {
	backend  *Backend
	cfg      domain.ModelConfig
	memoryMB float64
	once     sync.Once
}

func (m *model) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return ports.GenerateResponse{}, err
	}
	if err := sleep(ctx, m.backend.generateDelay); err != nil {
		return ports.GenerateResponse{}, err
	}

	text := m.backend.responder(m.cfg.Name, req)
	tokens := len(strings.Fields(text))
	if req.MaxTokens > 0 && tokens > req.MaxTokens {
		words := strings.Fields(text)
		text = strings.Join(words[:req.MaxTokens], " ")
		tokens = req.MaxTokens
	}
	return ports.GenerateResponse{Text: text, TokensGenerated: tokens}, nil
}

func (m *model) MemoryMB() float64 {
	return m.memoryMB
}

func (m *model) Close() error {
	m.once.Do(func() {
		m.backend.mu.Lock()
		m.backend.closed[m.cfg.Name]++
		m.backend.mu.Unlock()
	})
	return nil
}

// EchoResponder answers with a short acknowledgement of the last prompt line.
func EchoResponder(modelName string, req ports.GenerateRequest) string {
	lines := strings.Split(strings.TrimSpace(req.Prompt), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" && !strings.HasSuffix(l, ":") {
			last = l
			break
		}
	}
	return fmt.Sprintf("[%s] Processed request: %s", modelName, last)
}

// EstimateMemoryMB approximates the resident size of a model from its tier and quantization.
func EstimateMemoryMB(cfg domain.ModelConfig) float64 {
	base := 1024.0
	switch cfg.Tier {
	case domain.TierRouting:
		base = 256
	case domain.TierReasoning:
		base = 5400
	case domain.TierDomain:
		base = 2048
	}
	switch cfg.Quantization {
	case domain.QuantizationFP16:
		return base / 2
	case domain.QuantizationINT8:
		return base / 4
	case domain.QuantizationINT4:
		return base / 8
	default:
		return base
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
