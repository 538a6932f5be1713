package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateChange     EventType = "state_change"
	EventRequestComplete EventType = "request_complete"
	EventModelLoad       EventType = "model_load"
	EventModelEvict      EventType = "model_evict"
	EventRetrieve        EventType = "retrieve"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp     time.Time `json:"timestamp"`
	Type          EventType `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// StateEvent represents a workflow state transition.
type StateEvent struct {
	EventBase
	From   WorkflowState `json:"from"`
	To     WorkflowState `json:"to"`
	Forced bool          `json:"forced,omitempty"`
}

// RequestEvent is emitted once per processed request.
type RequestEvent struct {
	EventBase
	Status        Status  `json:"status"`
	Domain        string  `json:"domain,omitempty"`
	LatencyMS     float64 `json:"latency_ms"`
	ReasoningUsed bool    `json:"reasoning_used,omitempty"`
}

// ModelEvent represents a model entering or leaving the registry.
type ModelEvent struct {
	EventBase
	ModelID  string  `json:"model_id"`
	MemoryMB float64 `json:"memory_mb"`
	Duration float64 `json:"duration_ms,omitempty"`
	Err      error   `json:"-"`
}

// RetrievalEvent reports one DualRAG lookup.
type RetrievalEvent struct {
	EventBase
	DomainID  string  `json:"domain_id"`
	Local     int     `json:"local"`
	Global    int     `json:"global"`
	LatencyMS float64 `json:"latency_ms"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
type LifecycleHooks struct {
	OnStateChange     func(context.Context, *StateEvent)
	OnRequestComplete func(context.Context, *RequestEvent)
	OnModelLoad       func(context.Context, *ModelEvent)
	OnModelEvict      func(context.Context, *ModelEvent)
	OnRetrieve        func(context.Context, *RetrievalEvent)
}

type correlationKey struct{}

// WithCorrelationID attaches a request correlation id to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id attached by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
