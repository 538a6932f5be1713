package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/mdsa/internal/logging"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/ports"
)

// DefaultMaxTurns bounds the history kept per session.
const DefaultMaxTurns = 20

// DefaultLockTTL is the distributed lock lease for one exchange.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.ConversationStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker   ports.DistributedLocker
	lockTTL  time.Duration
	maxTurns int
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithMaxTurns keeps only the last n turns of each session.
func WithMaxTurns(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTurns = n
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager over store.
func NewManager(store ports.ConversationStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		maxTurns: DefaultMaxTurns,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// History returns the turns of a session. An unknown session has no turns.
func (m *Manager) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		turns, err = m.load(ctx, sessionID)
		return err
	})
	return turns, err
}

// Exchange runs one request of a session. fn receives the history so far and
// returns the assistant reply; the query and a non-empty reply are appended.
// A failing fn leaves the history untouched.
func (m *Manager) Exchange(ctx context.Context, sessionID, query string, fn func(ctx context.Context, history []domain.Turn) (string, error)) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		history, err := m.load(ctx, sessionID)
		if err != nil {
			return err
		}
		reply, err := fn(ctx, history)
		if err != nil {
			return err
		}

		history = append(history, domain.Turn{Role: domain.RoleUser, Content: query})
		if reply != "" {
			history = append(history, domain.Turn{Role: domain.RoleAssistant, Content: reply})
		}
		if len(history) > m.maxTurns {
			history = history[len(history)-m.maxTurns:]
		}
		if err := m.store.Save(ctx, sessionID, history); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

func (m *Manager) load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	turns, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return turns, nil
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "session:"+sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
