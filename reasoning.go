package mdsa

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/reasoner"
)

// processWithReasoning executes a multi-task plan. The workflow transitions
// happen once for the whole plan; tasks run in plan order and a task whose
// dependency did not complete fails the request.
func (o *Orchestrator) processWithReasoning(ctx context.Context, req *request, plan reasoner.ReasoningResult) domain.Result {
	meta := domain.Metadata{
		ReasoningUsed:     true,
		NumTasks:          len(plan.ExecutionPlan),
		ReasoningAnalysis: plan.Analysis,
		ReasoningTimeMS:   plan.ReasoningTimeMS,
	}
	o.logger.Info("using reasoning path",
		"correlation_id", req.correlationID,
		"tasks", len(plan.ExecutionPlan),
		"estimated_ms", plan.TotalEstimatedTimeMS,
	)
	for _, t := range plan.ExecutionPlan {
		o.logger.Debug("planned task",
			"correlation_id", req.correlationID,
			"task_id", t.ID,
			"domain", t.Domain,
			"dependencies", t.Dependencies,
		)
	}

	for _, s := range []domain.WorkflowState{domain.StateValidatePre, domain.StateLoadSLM, domain.StateExecute} {
		if err := req.sm.Transition(s, false); err != nil {
			return o.fail(req, meta, err, domain.ErrorKindInternal)
		}
	}

	status := make(map[string]domain.TaskStatus, len(plan.ExecutionPlan))
	failed := 0
	for _, task := range plan.ExecutionPlan {
		for _, dep := range task.Dependencies {
			if status[dep] != domain.TaskCompleted {
				// The whole request fails; completed tasks are not reported.
				meta.TaskResults = nil
				meta.ExecutionTimeMS = msSince(req.start) - meta.ReasoningTimeMS
				err := fmt.Errorf("%w: task %s dependency %s not satisfied", domain.ErrDependencyUnsatisfied, task.ID, dep)
				return o.fail(req, meta, err, domain.ErrorKindDependency)
			}
		}

		tr := o.runTask(ctx, req, task)
		status[task.ID] = tr.Status
		if tr.Status != domain.TaskCompleted {
			failed++
		}
		meta.TaskResults = append(meta.TaskResults, tr)
	}
	meta.ExecutionTimeMS = msSince(req.start) - meta.ReasoningTimeMS
	if len(meta.TaskResults) > 0 {
		meta.Domain = meta.TaskResults[len(meta.TaskResults)-1].Domain
	}

	if failed > 0 {
		err := fmt.Errorf("%d of %d task(s) failed", failed, len(plan.ExecutionPlan))
		return o.fail(req, meta, err, domain.ErrorKindInternal)
	}

	var response []string
	for _, tr := range meta.TaskResults {
		if tr.Response != "" {
			response = append(response, tr.Response)
		}
	}
	msg := fmt.Sprintf("Complex query processed with %d task(s) (reasoning-based)", len(plan.ExecutionPlan))
	return o.complete(req, meta, msg, strings.Join(response, "\n\n"))
}

// runTask routes one task and, when an executor is configured, runs it.
func (o *Orchestrator) runTask(ctx context.Context, req *request, task domain.Task) domain.TaskResult {
	query := task.Query
	if query == "" {
		query = task.Description
	}
	tr := domain.TaskResult{
		TaskID:      task.ID,
		Description: task.Description,
		Domain:      task.Domain,
		Query:       query,
		ToolsUsed:   task.ToolsNeeded,
	}

	id, conf := o.router.Classify(ctx, query)
	tr.Confidence = conf
	d, known := o.Domain(task.Domain)
	if !known && conf >= o.threshold {
		// No usable domain from the planner: route the task like a request.
		tr.Domain = id
		d, known = o.Domain(id)
	}
	if !known {
		tr.Status = domain.TaskFailed
		tr.Error = fmt.Sprintf("%v: no domain for task %s", domain.ErrUnknownDomain, task.ID)
		return tr
	}
	tr.Domain = d.ID

	o.logger.Info("executing task",
		"correlation_id", req.correlationID,
		"task_id", task.ID,
		"domain", d.ID,
		"confidence", tr.Confidence,
	)
	toolOutput, err := o.runTools(ctx, req, task, d.ID, query)
	if err != nil {
		tr.Status = domain.TaskFailed
		tr.Error = err.Error()
		return tr
	}
	if o.executor == nil {
		tr.Status = domain.TaskCompleted
		tr.Response = strings.Join(toolOutput, "\n")
		return tr
	}

	res := o.execute(ctx, req, d, query, tr.Confidence, nil, toolOutput...)
	if !res.OK() {
		tr.Status = domain.TaskFailed
		tr.Error = res.Error
		return tr
	}
	tr.Status = domain.TaskCompleted
	tr.Response = res.Response
	return tr
}

// runTools invokes the tools a task needs, in order. Each output becomes a
// context line for the task's generation.
func (o *Orchestrator) runTools(ctx context.Context, req *request, task domain.Task, domainID, query string) ([]string, error) {
	if o.tools == nil || len(task.ToolsNeeded) == 0 {
		return nil, nil
	}
	args := map[string]any{
		"task_id":        task.ID,
		"domain":         domainID,
		"query":          query,
		"correlation_id": req.correlationID,
	}
	out := make([]string, 0, len(task.ToolsNeeded))
	for _, name := range task.ToolsNeeded {
		v, err := o.tools.Execute(ctx, name, args)
		if err != nil {
			return nil, fmt.Errorf("task %s: tool %s: %w", task.ID, name, err)
		}
		o.logger.Debug("tool executed", "correlation_id", req.correlationID, "task_id", task.ID, "tool", name)
		out = append(out, fmt.Sprintf("%s: %v", name, v))
	}
	return out, nil
}
