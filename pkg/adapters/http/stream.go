package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/mdsa/pkg/bus"
)

const streamBuffer = 64

// StreamManager fans bus messages out to SSE clients.
type StreamManager struct {
	bus    *bus.Bus
	logger *slog.Logger

	mu      sync.Mutex
	clients int
}

// NewStreamManager creates a manager reading from b.
func NewStreamManager(b *bus.Bus, logger *slog.Logger) *StreamManager {
	return &StreamManager{bus: b, logger: logger}
}

// Subscribe returns a channel receiving messages from channel (all channels
// when empty), optionally restricted to one correlation id. The returned
// func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(channel, correlationID string) (<-chan bus.Message, func(), error) {
	ch := make(chan bus.Message, streamBuffer)
	var (
		once   sync.Once
		closed bool
		mu     sync.Mutex
	)

	id, err := sm.bus.Subscribe(channel, func(m bus.Message) {
		if correlationID != "" && m.CorrelationID != correlationID {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- m:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: client buffer full, dropping message", "channel", m.Channel)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	sm.mu.Lock()
	sm.clients++
	sm.mu.Unlock()

	return ch, func() {
		once.Do(func() {
			sm.bus.Unsubscribe(id)
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()

			sm.mu.Lock()
			sm.clients--
			sm.mu.Unlock()
		})
	}, nil
}

// Clients returns the number of connected streams.
func (sm *StreamManager) Clients() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.clients
}
