package reasoner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/mdsa/internal/graph"
	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
)

// ReasoningResult is the outcome of AnalyzeAndPlan.
type ReasoningResult struct {
	Success              bool          `json:"success"`
	Analysis             string        `json:"analysis"`
	ExecutionPlan        []domain.Task `json:"execution_plan"`
	ReasoningTimeMS      float64       `json:"reasoning_time_ms"`
	TotalEstimatedTimeMS float64       `json:"total_estimated_time_ms"`
	Error                string        `json:"error,omitempty"`

	Err error `json:"-"`
}

// Planner validates decomposed plans and orders them.
type Planner struct {
	decomposer Decomposer
	logger     *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithDecomposer replaces the decomposition strategy.
func WithDecomposer(d Decomposer) PlannerOption {
	return func(p *Planner) {
		p.decomposer = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = l
	}
}

// NewPlanner creates a Planner. Without WithDecomposer it uses a
// ClauseDecomposer that leaves task domains empty.
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{
		decomposer: NewClauseDecomposer(nil),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnalyzeAndPlan decomposes query and returns its tasks in dependency order.
// It never returns an error; failures are reported with Success=false.
func (p *Planner) AnalyzeAndPlan(ctx context.Context, query string, reqCtx map[string]any) ReasoningResult {
	start := time.Now()
	res := p.plan(ctx, query, reqCtx)
	res.ReasoningTimeMS = float64(time.Since(start).Microseconds()) / 1000
	if res.Err != nil {
		res.Success = false
		res.Error = res.Err.Error()
		p.logger.Warn("planning failed", "err", res.Err)
		return res
	}
	res.Success = true
	for _, t := range res.ExecutionPlan {
		res.TotalEstimatedTimeMS += t.EstimatedTimeMS
	}
	p.logger.Debug("plan ready", "tasks", len(res.ExecutionPlan), "estimated_ms", res.TotalEstimatedTimeMS)
	return res
}

func (p *Planner) plan(ctx context.Context, query string, reqCtx map[string]any) ReasoningResult {
	plan, err := p.decomposer.Decompose(ctx, query, reqCtx)
	if err != nil {
		return ReasoningResult{Err: err}
	}
	res := ReasoningResult{Analysis: plan.Analysis}
	ordered, err := Order(plan.Tasks)
	if err != nil {
		res.Err = err
		return res
	}
	res.ExecutionPlan = ordered
	return res
}

// Order validates tasks and sorts them so every task comes after its
// dependencies. Ties keep the decomposer's order.
func Order(tasks []domain.Task) ([]domain.Task, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("empty plan")
	}

	byID := make(map[string]domain.Task, len(tasks))
	g := graph.New()
	for _, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("task without id: %q", t.Description)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		byID[t.ID] = t
		g.AddNode(t.ID)
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("%w: task %s depends on unknown task %s", domain.ErrDependencyUnsatisfied, t.ID, dep)
			}
			if err := g.AddEdge(t.ID, dep); err != nil {
				return nil, err
			}
		}
	}

	ids, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}
