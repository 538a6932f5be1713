package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateDomain is returned when a domain id is registered twice with the router.
var ErrDuplicateDomain = errors.New("domain already registered")

// ErrUnknownDomain is returned when a domain id is referenced but was never registered.
var ErrUnknownDomain = errors.New("unknown domain")

// ErrAlreadyRegistered is returned when a model id is registered twice in the registry.
var ErrAlreadyRegistered = errors.New("model already registered")

// ErrModelNotFound is returned when a model id is not resident in the registry.
var ErrModelNotFound = errors.New("model not loaded")

// ErrModelInUse is returned when unloading a model that is checked out.
var ErrModelInUse = errors.New("model in use")

// ErrModelLoad wraps failures raised by a model backend while loading.
var ErrModelLoad = errors.New("model load failed")

// ErrRoutingAmbiguity marks a request whose classification confidence is below threshold.
// It is an escalation signal, not a failure.
var ErrRoutingAmbiguity = errors.New("routing confidence below threshold")

// ErrDependencyUnsatisfied is returned when a plan task runs before its dependencies completed.
var ErrDependencyUnsatisfied = errors.New("task dependency not satisfied")

// ErrCyclicPlan is returned when a decomposed plan contains a dependency cycle.
var ErrCyclicPlan = errors.New("plan contains a dependency cycle")

// ErrTimeout is returned when an execution exceeds its deadline.
var ErrTimeout = errors.New("execution timed out")

// ErrValidation is returned when a generated response fails output validation.
var ErrValidation = errors.New("response failed validation")

// ErrInvalidTransition is returned when the state machine rejects a transition.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrClosed is returned by components used after Close/Shutdown.
var ErrClosed = errors.New("component closed")

// TransitionError describes a rejected state machine transition.
type TransitionError struct {
	From WorkflowState
	To   WorkflowState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ErrSessionNotFound is returned when a conversation has no stored history.
var ErrSessionNotFound = errors.New("session not found")

// ErrQueryTooLarge is returned when a query exceeds the configured size.
var ErrQueryTooLarge = errors.New("query exceeds maximum allowed size")

// ErrInvalidUTF8 is returned when a query is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("query contains invalid UTF-8 sequences")
