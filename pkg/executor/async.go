package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aretw0/mdsa/pkg/domain"
)

// Request is one unit of work for the AsyncExecutor.
type Request struct {
	Query   string
	Domain  domain.Domain
	Options Options
}

// AsyncStats reports AsyncExecutor counters.
type AsyncStats struct {
	TotalQueries   int64   `json:"total_queries"`
	Successful     int64   `json:"successful"`
	Failed         int64   `json:"failed"`
	Timeouts       int64   `json:"timeouts"`
	SuccessRate    float64 `json:"success_rate"`
	ConcurrentPeak int64   `json:"concurrent_peak"`
	Active         int64   `json:"active"`
	AvgLatencyMS   float64 `json:"avg_latency_ms"`
	MaxConcurrent  int64   `json:"max_concurrent"`
}

// AsyncExecutor runs executions concurrently, at most MaxConcurrent at a time.
type AsyncExecutor struct {
	exec    *Executor
	sem     *semaphore.Weighted
	max     int64
	timeout time.Duration

	mu           sync.Mutex
	stats        AsyncStats
	totalLatency float64
	closed       bool
	inflight     sync.WaitGroup
}

// AsyncOption configures an AsyncExecutor.
type AsyncOption func(*AsyncExecutor)

// WithMaxConcurrent bounds the number of simultaneous executions.
func WithMaxConcurrent(n int) AsyncOption {
	return func(a *AsyncExecutor) {
		if n > 0 {
			a.max = int64(n)
		}
	}
}

// WithCallTimeout bounds each call, including the wait for a slot.
func WithCallTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncExecutor) {
		a.timeout = d
	}
}

// NewAsync wraps exec.
func NewAsync(exec *Executor, opts ...AsyncOption) *AsyncExecutor {
	a := &AsyncExecutor{
		exec: exec,
		max:  domain.DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.sem = semaphore.NewWeighted(a.max)
	a.stats.MaxConcurrent = a.max
	return a
}

// Execute runs req once a slot is free.
func (a *AsyncExecutor) Execute(ctx context.Context, req Request) domain.ExecutionResult {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return a.record(failed(req, domain.ErrClosed, domain.ErrorKindInternal))
	}
	a.inflight.Add(1)
	a.mu.Unlock()
	defer a.inflight.Done()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return a.record(failed(req, fmt.Errorf("wait for execution slot: %w", err), domain.ErrorKindTimeout))
	}
	defer a.sem.Release(1)

	a.mu.Lock()
	a.stats.Active++
	if a.stats.Active > a.stats.ConcurrentPeak {
		a.stats.ConcurrentPeak = a.stats.Active
	}
	a.mu.Unlock()

	res := a.exec.Execute(ctx, req.Query, req.Domain, req.Options)

	a.mu.Lock()
	a.stats.Active--
	a.mu.Unlock()
	return a.record(res)
}

// Submit runs req in the background. The channel receives exactly one result.
func (a *AsyncExecutor) Submit(ctx context.Context, req Request) <-chan domain.ExecutionResult {
	ch := make(chan domain.ExecutionResult, 1)
	go func() {
		ch <- a.Execute(ctx, req)
	}()
	return ch
}

// ExecuteBatch runs all requests concurrently and returns their results in
// request order.
func (a *AsyncExecutor) ExecuteBatch(ctx context.Context, reqs []Request) []domain.ExecutionResult {
	results := make([]domain.ExecutionResult, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = a.Execute(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *AsyncExecutor) record(res domain.ExecutionResult) domain.ExecutionResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalQueries++
	a.totalLatency += res.LatencyMS
	if res.OK() {
		a.stats.Successful++
	} else {
		a.stats.Failed++
		if res.ErrorKind == domain.ErrorKindTimeout {
			a.stats.Timeouts++
		}
	}
	return res
}

// Stats returns a snapshot of the counters. SuccessRate is a percentage.
func (a *AsyncExecutor) Stats() AsyncStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	if s.TotalQueries > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.TotalQueries) * 100
		s.AvgLatencyMS = a.totalLatency / float64(s.TotalQueries)
	}
	return s
}

// Shutdown rejects new work and waits for in-flight executions or ctx.
func (a *AsyncExecutor) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failed(req Request, err error, kind domain.ErrorKind) domain.ExecutionResult {
	return domain.ExecutionResult{
		Status:     domain.StatusError,
		Domain:     req.Domain.ID,
		Model:      req.Domain.ModelConfig().Name,
		Confidence: req.Options.Confidence,
		Error:      err.Error(),
		ErrorKind:  kind,
	}
}
