// Package ollama implements ports.ModelBackend against a running Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultTimeout = 120 * time.Second
	// DefaultRate bounds requests per second sent to the server.
	DefaultRate  = 8
	DefaultBurst = 4
)

// ErrModelNotFound is returned when the server does not know the requested model.
var ErrModelNotFound = errors.New("ollama: model not found")

// Backend loads models served by Ollama. Safe for concurrent use.
type Backend struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	keepAlive string
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) {
		b.client = c
	}
}

// WithRateLimit limits requests to r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(b *Backend) {
		b.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithKeepAlive sets how long the server keeps a model resident after a call ("5m", "-1").
func WithKeepAlive(d string) Option {
	return func(b *Backend) {
		b.keepAlive = d
	}
}

// New creates a backend talking to baseURL. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, opts ...Option) *Backend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	b := &Backend{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: DefaultTimeout},
		limiter:   rate.NewLimiter(DefaultRate, DefaultBurst),
		keepAlive: "5m",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind implements ports.ModelBackend.
func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendOllama
}

type showResponse struct {
	Details struct {
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// Load checks the model exists and asks the server to make it resident.
func (b *Backend) Load(ctx context.Context, cfg domain.ModelConfig) (ports.LoadedModel, error) {
	var show showResponse
	if err := b.post(ctx, "/api/show", map[string]any{"model": cfg.Name}, &show); err != nil {
		return nil, err
	}

	// An empty prompt loads the model without generating.
	warm := generateRequest{Model: cfg.Name, KeepAlive: b.keepAlive}
	if err := b.post(ctx, "/api/generate", warm, nil); err != nil {
		return nil, fmt.Errorf("warm %s: %w", cfg.Name, err)
	}

	mem := estimateMemoryMB(show.Details.ParameterSize, show.Details.QuantizationLevel)
	if mem <= 0 {
		mem = memory.EstimateMemoryMB(cfg)
	}
	return &model{backend: b, cfg: cfg, memMB: mem}, nil
}

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt,omitempty"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive any            `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response  string `json:"response"`
	EvalCount int    `json:"eval_count"`
}

type model struct {
	backend *Backend
	cfg     domain.ModelConfig
	memMB   float64
}

func (m *model) Generate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResponse, error) {
	opts := map[string]any{}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if m.cfg.MaxLength > 0 {
		opts["num_ctx"] = m.cfg.MaxLength
	}

	var out generateResponse
	err := m.backend.post(ctx, "/api/generate", generateRequest{
		Model:     m.cfg.Name,
		Prompt:    req.Prompt,
		System:    req.System,
		KeepAlive: m.backend.keepAlive,
		Options:   opts,
	}, &out)
	if err != nil {
		return ports.GenerateResponse{}, err
	}

	tokens := out.EvalCount
	if tokens == 0 {
		tokens = len(strings.Fields(out.Response))
	}
	return ports.GenerateResponse{Text: out.Response, TokensGenerated: tokens}, nil
}

func (m *model) MemoryMB() float64 {
	return m.memMB
}

// Close asks the server to unload the model right away.
func (m *model) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.backend.post(ctx, "/api/generate", generateRequest{Model: m.cfg.Name, KeepAlive: 0}, nil)
}

func (b *Backend) post(ctx context.Context, path string, body, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ollama: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ollama: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("ollama: %s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("ollama: %s: status %d", path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode %s: %w", path, err)
	}
	return nil
}

// estimateMemoryMB derives a footprint from Ollama's "3.2B" / "Q4_K_M" details.
func estimateMemoryMB(params, quant string) float64 {
	params = strings.TrimSpace(strings.ToUpper(params))
	scale := 1.0
	switch {
	case strings.HasSuffix(params, "B"):
		scale = 1e9
	case strings.HasSuffix(params, "M"):
		scale = 1e6
	default:
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimRight(params, "BM"), 64)
	if err != nil || n <= 0 {
		return 0
	}

	bits := 16.0
	q := strings.ToUpper(quant)
	switch {
	case strings.HasPrefix(q, "Q4"):
		bits = 4.5
	case strings.HasPrefix(q, "Q5"):
		bits = 5.5
	case strings.HasPrefix(q, "Q8"):
		bits = 8.5
	case strings.HasPrefix(q, "F32"):
		bits = 32
	}
	return n * scale * bits / 8 / (1 << 20)
}
