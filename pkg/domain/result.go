package domain

// Status tags the outcome of a processed request.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusEscalated Status = "escalated"
	StatusError     Status = "error"
)

// ErrorKind classifies an error result.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindModelLoad  ErrorKind = "model_load"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindDependency ErrorKind = "dependency"
	ErrorKindInternal   ErrorKind = "internal"
)

// Result is the tagged outcome of Orchestrator.ProcessRequest.
type Result struct {
	Status   Status   `json:"status"`
	Message  string   `json:"message"`
	Response string   `json:"response,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries the diagnostic fields of a Result.
type Metadata struct {
	CorrelationID string          `json:"correlation_id"`
	Domain        string          `json:"domain,omitempty"`
	Confidence    float64         `json:"confidence"`
	LatencyMS     float64         `json:"latency_ms"`
	StateHistory  []WorkflowState `json:"state_history,omitempty"`

	// Escalation
	Threshold           float64 `json:"threshold,omitempty"`
	RequiresHumanReview bool    `json:"requires_human_review,omitempty"`

	// Reasoning path
	ReasoningUsed     bool         `json:"reasoning_used"`
	NumTasks          int          `json:"num_tasks,omitempty"`
	ReasoningAnalysis string       `json:"reasoning_analysis,omitempty"`
	ReasoningTimeMS   float64      `json:"reasoning_time_ms,omitempty"`
	ExecutionTimeMS   float64      `json:"execution_time_ms,omitempty"`
	TaskResults       []TaskResult `json:"task_results,omitempty"`

	// Execution
	Model           string    `json:"model,omitempty"`
	TokensGenerated int       `json:"tokens_generated,omitempty"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// ValidationReport summarizes the checks applied to a generated response.
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Issues     []string `json:"issues,omitempty"`
	Sanitized  bool     `json:"sanitized,omitempty"`
	Repetitive bool     `json:"repetitive,omitempty"`
}

// ExecutionResult is the outcome of running one query against a domain model.
type ExecutionResult struct {
	Status          Status           `json:"status"`
	Domain          string           `json:"domain"`
	Model           string           `json:"model"`
	Response        string           `json:"response"`
	LatencyMS       float64          `json:"latency_ms"`
	TokensGenerated int              `json:"tokens_generated"`
	Confidence      float64          `json:"confidence"`
	Error           string           `json:"error,omitempty"`
	ErrorKind       ErrorKind        `json:"error_kind,omitempty"`
	Validation      ValidationReport `json:"validation"`
}

// OK reports whether the execution succeeded.
func (r ExecutionResult) OK() bool {
	return r.Status == StatusSuccess
}
