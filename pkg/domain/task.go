package domain

// Task is one step of a decomposed plan.
type Task struct {
	ID              string   `json:"task_id"`
	Description     string   `json:"description"`
	Domain          string   `json:"domain"`
	Query           string   `json:"query"`
	Dependencies    []string `json:"dependencies,omitempty"`
	ToolsNeeded     []string `json:"tools_needed,omitempty"`
	EstimatedTimeMS float64  `json:"estimated_time_ms"`
}

// TaskStatus is the outcome of one executed plan task.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskResult records the execution of a plan task.
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	Description string     `json:"description"`
	Domain      string     `json:"domain"`
	Confidence  float64    `json:"confidence"`
	Query       string     `json:"query"`
	ToolsUsed   []string   `json:"tools_used,omitempty"`
	Status      TaskStatus `json:"status"`
	Response    string     `json:"response,omitempty"`
	Error       string     `json:"error,omitempty"`
}
