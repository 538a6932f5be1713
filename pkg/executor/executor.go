// Package executor runs queries against domain models: it loads the model,
// renders the prompt, generates and validates the response.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/ports"
)

// Options are per-call execution settings.
type Options struct {
	// Context holds retrieved documents added to the prompt.
	Context []string
	History []Turn
	// Timeout bounds the whole execution. Zero uses the executor default.
	Timeout time.Duration
	// Confidence is the routing confidence, copied to the result.
	Confidence float64
	// Lease is a checkout of the domain's model already held by the caller.
	// The executor uses it instead of checking the model out again and leaves
	// releasing it to the caller.
	Lease *models.Lease
}

// Executor runs single queries. It is safe for concurrent use.
type Executor struct {
	manager   *models.Manager
	validator *Validator
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithValidator replaces the response validator.
func WithValidator(v *Validator) Option {
	return func(e *Executor) {
		e.validator = v
	}
}

// WithTimeout sets the default per-execution timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// DefaultTimeout bounds an execution when no other timeout is given.
const DefaultTimeout = 60 * time.Second

// New creates an Executor loading models through manager.
func New(manager *models.Manager, opts ...Option) *Executor {
	e := &Executor{
		manager:   manager,
		validator: NewValidator(),
		timeout:   DefaultTimeout,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Manager returns the model manager used by the executor.
func (e *Executor) Manager() *models.Manager {
	return e.manager
}

// Execute runs query against d's model. It never returns an error: failures
// are reported with Status=error and an ErrorKind.
func (e *Executor) Execute(ctx context.Context, query string, d domain.Domain, opts Options) domain.ExecutionResult {
	start := time.Now()
	cfg := d.ModelConfig()
	res := domain.ExecutionResult{
		Domain:     d.ID,
		Model:      cfg.Name,
		Confidence: opts.Confidence,
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = e.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, tokens, report, err := e.run(ctx, query, d, cfg, opts)
	res.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
	res.Validation = report
	if err != nil {
		res.Status = domain.StatusError
		res.Error = err.Error()
		res.ErrorKind = classify(ctx, err)
		e.logger.Warn("execution failed", "domain", d.ID, "model_id", cfg.Name, "kind", res.ErrorKind, "err", err)
		return res
	}

	res.Status = domain.StatusSuccess
	res.Response = text
	res.TokensGenerated = tokens
	e.logger.Debug("execution complete", "domain", d.ID, "model_id", cfg.Name, "latency_ms", res.LatencyMS)
	return res
}

func (e *Executor) run(ctx context.Context, query string, d domain.Domain, cfg domain.ModelConfig, opts Options) (string, int, domain.ValidationReport, error) {
	lease := opts.Lease
	if lease == nil || lease.Info().ModelID != cfg.Name {
		var err error
		lease, err = e.manager.GetOrLoad(ctx, cfg)
		if err != nil {
			return "", 0, domain.ValidationReport{}, err
		}
		defer lease.Release()
	}

	maxTokens := d.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxLength
	}
	out, err := generate(ctx, lease.Model(), ports.GenerateRequest{
		Prompt:      BuildPrompt(d, query, opts.Context, opts.History),
		System:      d.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: d.Temperature,
	})
	if err != nil {
		return "", 0, domain.ValidationReport{}, fmt.Errorf("generate: %w", err)
	}

	text, report, err := e.validator.Validate(out.Text)
	if err != nil {
		return "", 0, report, err
	}
	return text, out.TokensGenerated, report, nil
}

// generate abandons a generation that outlives ctx. The backend call keeps
// running in its goroutine until it returns on its own.
func generate(ctx context.Context, m ports.LoadedModel, req ports.GenerateRequest) (ports.GenerateResponse, error) {
	type result struct {
		resp ports.GenerateResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := m.Generate(ctx, req)
		ch <- result{resp, err}
	}()
	select {
	case <-ctx.Done():
		return ports.GenerateResponse{}, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

func classify(ctx context.Context, err error) domain.ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimeout),
		errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.ErrorKindTimeout
	case errors.Is(err, domain.ErrModelLoad):
		return domain.ErrorKindModelLoad
	case errors.Is(err, domain.ErrValidation):
		return domain.ErrorKindValidation
	default:
		return domain.ErrorKindInternal
	}
}
