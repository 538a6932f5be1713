package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/ports"
)

// DefaultTaskEstimateMS is the estimated latency assigned to a task when the
// decomposer does not provide one.
const DefaultTaskEstimateMS = 250

// Plan is the raw output of a Decomposer, before validation.
type Plan struct {
	Analysis string        `json:"analysis"`
	Tasks    []domain.Task `json:"tasks"`
}

// Decomposer breaks a query into tasks.
type Decomposer interface {
	Decompose(ctx context.Context, query string, reqCtx map[string]any) (Plan, error)
}

// Classifier assigns a domain to a piece of text. *router.Router satisfies it.
type Classifier interface {
	Classify(ctx context.Context, query string) (string, float64)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, query string) (string, float64)

func (f ClassifierFunc) Classify(ctx context.Context, query string) (string, float64) {
	return f(ctx, query)
}

// ClauseDecomposer is the deterministic decomposer: one task per clause, each
// sequential clause depending on the one before it.
type ClauseDecomposer struct {
	classifier    Classifier
	minConfidence float64
}

// ClauseOption configures a ClauseDecomposer.
type ClauseOption func(*ClauseDecomposer)

// WithMinConfidence leaves a task's domain empty when the classifier is less
// confident than threshold.
func WithMinConfidence(threshold float64) ClauseOption {
	return func(d *ClauseDecomposer) {
		d.minConfidence = threshold
	}
}

// NewClauseDecomposer creates a ClauseDecomposer. classifier may be nil, in
// which case tasks carry no domain and the caller routes them.
func NewClauseDecomposer(classifier Classifier, opts ...ClauseOption) *ClauseDecomposer {
	d := &ClauseDecomposer{classifier: classifier}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *ClauseDecomposer) Decompose(ctx context.Context, query string, _ map[string]any) (Plan, error) {
	clauses := SplitClauses(query)
	if len(clauses) == 0 {
		return Plan{}, fmt.Errorf("nothing to plan: empty query")
	}

	tasks := make([]domain.Task, 0, len(clauses))
	var sequential int
	for i, c := range clauses {
		t := domain.Task{
			ID:              taskID(i),
			Description:     c.Text,
			Query:           c.Text,
			EstimatedTimeMS: DefaultTaskEstimateMS,
		}
		if d.classifier != nil {
			if id, conf := d.classifier.Classify(ctx, c.Text); conf >= d.minConfidence {
				t.Domain = id
			}
		}
		if c.Sequential && i > 0 {
			t.Dependencies = []string{tasks[i-1].ID}
			sequential++
		}
		tasks = append(tasks, t)
	}

	analysis := fmt.Sprintf("%d clause(s), %d sequential dependency(ies)", len(tasks), sequential)
	return Plan{Analysis: analysis, Tasks: tasks}, nil
}

func taskID(i int) string {
	return fmt.Sprintf("task_%d", i+1)
}

// ModelDecomposer asks a reasoning-tier model for a JSON plan.
// Output depends on the model and is not deterministic.
type ModelDecomposer struct {
	manager *models.Manager
	config  domain.ModelConfig
	domains func() []string
}

// NewModelDecomposer creates a ModelDecomposer. domains lists the ids the
// model may assign tasks to.
func NewModelDecomposer(manager *models.Manager, cfg domain.ModelConfig, domains func() []string) *ModelDecomposer {
	return &ModelDecomposer{manager: manager, config: cfg, domains: domains}
}

const planSystemPrompt = `You split user requests into tasks. Answer only with JSON of the form
{"analysis": "...", "tasks": [{"task_id": "task_1", "description": "...", "domain": "...", "query": "...", "dependencies": [], "tools_needed": [], "estimated_time_ms": 200}]}`

func (d *ModelDecomposer) Decompose(ctx context.Context, query string, _ map[string]any) (Plan, error) {
	lease, err := d.manager.GetOrLoad(ctx, d.config)
	if err != nil {
		return Plan{}, err
	}
	defer lease.Release()

	var prompt strings.Builder
	if d.domains != nil {
		fmt.Fprintf(&prompt, "Available domains: %s\n", strings.Join(d.domains(), ", "))
	}
	fmt.Fprintf(&prompt, "Request: %s\nPlan:", query)

	resp, err := lease.Model().Generate(ctx, ports.GenerateRequest{
		Prompt:      prompt.String(),
		System:      planSystemPrompt,
		MaxTokens:   d.config.MaxLength,
		Temperature: 0.1,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("generate plan: %w", err)
	}
	return ParsePlan(resp.Text)
}

// ParsePlan extracts the first JSON object from text and decodes it as a Plan.
// Missing task ids, queries and estimates are filled in.
func ParsePlan(text string) (Plan, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Plan{}, fmt.Errorf("no JSON object in model output")
	}

	var p Plan
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	for i := range p.Tasks {
		t := &p.Tasks[i]
		if t.ID == "" {
			t.ID = taskID(i)
		}
		if t.Query == "" {
			t.Query = t.Description
		}
		if t.EstimatedTimeMS <= 0 {
			t.EstimatedTimeMS = DefaultTaskEstimateMS
		}
	}
	return p, nil
}
