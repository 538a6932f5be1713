package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/mdsa/internal/presentation/graph"
	"github.com/aretw0/mdsa/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		tasks    []domain.Task
		overlay  *graph.PlanOverlay
		contains []string
		excludes []string
	}{
		{
			name:     "Task Shape",
			tasks:    []domain.Task{{ID: "task_1", Domain: "finance"}},
			contains: []string{`task_1["task_1 <br/> finance"]`},
		},
		{
			name:     "Tool Task Shape",
			tasks:    []domain.Task{{ID: "task_1", ToolsNeeded: []string{"calculator"}}},
			contains: []string{`task_1[["task_1"]]`},
		},
		{
			name: "Dependency Edges",
			tasks: []domain.Task{
				{ID: "task_1"},
				{ID: "task_2", Dependencies: []string{"task_1"}},
			},
			contains: []string{"task_1 --> task_2"},
			excludes: []string{"task_2 --> task_1"},
		},
		{
			name:     "ID Sanitization",
			tasks:    []domain.Task{{ID: "step-1.a"}},
			contains: []string{`step_1_a["step-1.a"]`},
		},
		{
			name:  "Overlay",
			tasks: []domain.Task{{ID: "task_1"}, {ID: "task_2"}, {ID: "task_3"}},
			overlay: &graph.PlanOverlay{
				Results: []domain.TaskResult{
					{TaskID: "task_1", Status: domain.TaskCompleted},
					{TaskID: "task_2", Status: domain.TaskFailed},
				},
				Current: "task_3",
			},
			contains: []string{"class task_1 completed;", "class task_2 failed;", "class task_3 current;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.tasks, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, bad := range tt.excludes {
				assert.NotContains(t, got, bad)
			}
		})
	}
}
