// Package workflow implements the per-request state machine that enforces the
// legal order of processing steps.
package workflow

import (
	"log/slog"
	"sync"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
)

// Listener is notified after every accepted transition.
type Listener func(from, to domain.WorkflowState, forced bool)

// Machine tracks the workflow state of one request at a time.
//
// Unforced transitions must follow domain.HappyPath. ERROR is reachable from
// any non-terminal state. Once RETURN or ERROR is reached only forced
// transitions are accepted until Reset.
type Machine struct {
	mu        sync.Mutex
	current   domain.WorkflowState
	history   []domain.WorkflowState
	metadata  map[string]any
	listeners []Listener
	logger    *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithListener registers a transition listener.
func WithListener(l Listener) Option {
	return func(m *Machine) {
		m.listeners = append(m.listeners, l)
	}
}

// New returns a machine in the INIT state.
func New(opts ...Option) *Machine {
	m := &Machine{
		current:  domain.StateInit,
		metadata: make(map[string]any),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the active state.
func (m *Machine) Current() domain.WorkflowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to the next state. Without force, only the happy-path
// successor or ERROR (from a non-terminal state) is accepted.
func (m *Machine) Transition(to domain.WorkflowState, force bool) error {
	m.mu.Lock()
	from := m.current
	if !force {
		if err := checkTransition(from, to); err != nil {
			m.mu.Unlock()
			m.logger.Debug("transition rejected", "from", from, "to", to)
			return err
		}
	}
	m.current = to
	m.history = append(m.history, to)
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.logger.Debug("state transition", "from", from, "to", to, "forced", force)
	for _, l := range listeners {
		l(from, to, force)
	}
	return nil
}

func checkTransition(from, to domain.WorkflowState) error {
	if from.IsTerminal() {
		return &domain.TransitionError{From: from, To: to}
	}
	if to == domain.StateError {
		return nil
	}
	next, ok := from.Next()
	if !ok || next != to {
		return &domain.TransitionError{From: from, To: to}
	}
	return nil
}

// Fail moves to ERROR unless the machine is already terminal.
// It reports whether a transition happened.
func (m *Machine) Fail() bool {
	if m.IsTerminal() {
		return false
	}
	return m.Transition(domain.StateError, false) == nil
}

// Reset returns to INIT and clears history and metadata.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.StateInit
	m.history = nil
	m.metadata = make(map[string]any)
}

// History returns the states visited since the last Reset, excluding INIT.
func (m *Machine) History() []domain.WorkflowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.WorkflowState(nil), m.history...)
}

// IsTerminal reports whether the machine reached RETURN or ERROR.
func (m *Machine) IsTerminal() bool {
	return m.Current().IsTerminal()
}

// SetMetadata attaches a value to the current request.
func (m *Machine) SetMetadata(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
}

// Metadata returns a value set with SetMetadata.
func (m *Machine) Metadata(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.metadata[key]
	return v, ok
}
