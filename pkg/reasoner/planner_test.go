package reasoner_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/models"
	"github.com/aretw0/mdsa/pkg/ports"
	"github.com/aretw0/mdsa/pkg/reasoner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDecomposer struct {
	plan reasoner.Plan
	err  error
}

func (s staticDecomposer) Decompose(context.Context, string, map[string]any) (reasoner.Plan, error) {
	return s.plan, s.err
}

func keywordClassifier() reasoner.Classifier {
	return reasoner.ClassifierFunc(func(_ context.Context, q string) (string, float64) {
		q = strings.ToLower(q)
		switch {
		case strings.Contains(q, "code"):
			return "medical_coding", 0.9
		case strings.Contains(q, "billing"):
			return "medical_billing", 0.9
		}
		return "", 0
	})
}

func TestClauseDecomposer_SequentialDependencies(t *testing.T) {
	p := reasoner.NewPlanner(reasoner.WithDecomposer(reasoner.NewClauseDecomposer(keywordClassifier())))

	res := p.AnalyzeAndPlan(context.Background(), "Extract ICD-10 codes and then calculate the billing amount", nil)
	require.True(t, res.Success, res.Error)
	require.Len(t, res.ExecutionPlan, 2)

	first, second := res.ExecutionPlan[0], res.ExecutionPlan[1]
	assert.Equal(t, "task_1", first.ID)
	assert.Equal(t, "medical_coding", first.Domain)
	assert.Empty(t, first.Dependencies)
	assert.Equal(t, "task_2", second.ID)
	assert.Equal(t, "medical_billing", second.Domain)
	assert.Equal(t, []string{"task_1"}, second.Dependencies)
	assert.Equal(t, float64(2*reasoner.DefaultTaskEstimateMS), res.TotalEstimatedTimeMS)
	assert.NotEmpty(t, res.Analysis)
}

func TestClauseDecomposer_IndependentClauses(t *testing.T) {
	d := reasoner.NewClauseDecomposer(nil)
	plan, err := d.Decompose(context.Background(), "Check my balance and reset my password", nil)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)
	assert.Empty(t, plan.Tasks[1].Dependencies)
	assert.Empty(t, plan.Tasks[0].Domain)
}

func TestPlanner_OrdersDependenciesFirst(t *testing.T) {
	p := reasoner.NewPlanner(reasoner.WithDecomposer(staticDecomposer{plan: reasoner.Plan{Tasks: []domain.Task{
		{ID: "bill", Dependencies: []string{"code"}, EstimatedTimeMS: 100},
		{ID: "notify", Dependencies: []string{"bill"}, EstimatedTimeMS: 50},
		{ID: "code", EstimatedTimeMS: 200},
	}}}))

	res := p.AnalyzeAndPlan(context.Background(), "q", nil)
	require.True(t, res.Success)

	var ids []string
	for _, task := range res.ExecutionPlan {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"code", "bill", "notify"}, ids)
	assert.Equal(t, 350.0, res.TotalEstimatedTimeMS)
}

func TestPlanner_Failures(t *testing.T) {
	tests := []struct {
		name    string
		dec     staticDecomposer
		wantErr error
	}{
		{
			name: "cycle",
			dec: staticDecomposer{plan: reasoner.Plan{Tasks: []domain.Task{
				{ID: "a", Dependencies: []string{"b"}},
				{ID: "b", Dependencies: []string{"a"}},
			}}},
			wantErr: domain.ErrCyclicPlan,
		},
		{
			name: "unknown dependency",
			dec: staticDecomposer{plan: reasoner.Plan{Tasks: []domain.Task{
				{ID: "a", Dependencies: []string{"ghost"}},
			}}},
			wantErr: domain.ErrDependencyUnsatisfied,
		},
		{
			name:    "decomposer error",
			dec:     staticDecomposer{err: domain.ErrTimeout},
			wantErr: domain.ErrTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reasoner.NewPlanner(reasoner.WithDecomposer(tt.dec)).AnalyzeAndPlan(context.Background(), "q", nil)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			assert.True(t, errors.Is(res.Err, tt.wantErr), "got %v", res.Err)
			assert.Empty(t, res.ExecutionPlan)
		})
	}

	res := reasoner.NewPlanner(reasoner.WithDecomposer(staticDecomposer{})).AnalyzeAndPlan(context.Background(), "q", nil)
	assert.False(t, res.Success, "empty plan")
}

func TestModelDecomposer_ParsesModelPlan(t *testing.T) {
	const out = `Sure. {"analysis": "two steps", "tasks": [
		{"task_id": "t1", "description": "extract codes", "domain": "medical_coding"},
		{"task_id": "t2", "description": "compute bill", "domain": "medical_billing", "dependencies": ["t1"], "estimated_time_ms": 400}
	]} Done.`

	var prompt string
	backend := memory.NewBackend(memory.WithResponder(func(_ string, req ports.GenerateRequest) string {
		prompt = req.Prompt
		return out
	}))
	mgr := models.NewManager(models.NewBackendSet(backend))
	dec := reasoner.NewModelDecomposer(mgr, domain.ModelConfigForTier2(), func() []string {
		return []string{"medical_coding", "medical_billing"}
	})

	res := reasoner.NewPlanner(reasoner.WithDecomposer(dec)).AnalyzeAndPlan(context.Background(), "code and bill this visit", nil)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "two steps", res.Analysis)
	require.Len(t, res.ExecutionPlan, 2)
	assert.Equal(t, "extract codes", res.ExecutionPlan[0].Query)
	assert.Equal(t, float64(reasoner.DefaultTaskEstimateMS+400), res.TotalEstimatedTimeMS)
	assert.Contains(t, prompt, "medical_coding, medical_billing")
	assert.True(t, mgr.IsLoaded(domain.ModelConfigForTier2().Name))
}

func TestParsePlan_Invalid(t *testing.T) {
	_, err := reasoner.ParsePlan("no json here")
	assert.Error(t, err)
	_, err = reasoner.ParsePlan("{not json}")
	assert.Error(t, err)
}

func TestClauseDecomposer_MinConfidence(t *testing.T) {
	d := reasoner.NewClauseDecomposer(keywordClassifier(), reasoner.WithMinConfidence(0.8))
	plan, err := d.Decompose(context.Background(), "Extract ICD-10 codes and then reset my password", nil)
	require.NoError(t, err)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "medical_coding", plan.Tasks[0].Domain)
	assert.Empty(t, plan.Tasks[1].Domain, "unmatched clause is left for the caller to route")
}
