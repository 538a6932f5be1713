// Package bus provides the in-process message bus used by the orchestrator to
// announce state changes and request completions.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/mdsa/internal/logging"
)

// DefaultHistorySize is the number of recent messages retained for inspection.
const DefaultHistorySize = 1000

// Well-known channels.
const (
	ChannelStateChanges = "state_changes"
	ChannelOrchestrator = "orchestrator"
	ChannelSystem       = "system"
	// ChannelAll subscribes to every channel.
	ChannelAll = ""
)

// MessageType categorizes a message.
type MessageType string

const (
	MessageRequest     MessageType = "request"
	MessageResponse    MessageType = "response"
	MessageStateChange MessageType = "state_change"
	MessageLog         MessageType = "log"
	MessageError       MessageType = "error"
)

// Message is one published envelope.
type Message struct {
	ID            string      `json:"id"`
	Channel       string      `json:"channel"`
	Sender        string      `json:"sender"`
	Type          MessageType `json:"type"`
	Payload       any         `json:"payload"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Handler receives delivered messages. Handlers run synchronously on the
// publisher goroutine and must not block.
type Handler func(Message)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	channel string
	handler Handler
}

// Stats summarizes bus activity.
type Stats struct {
	MessagesPublished int64          `json:"messages_published"`
	MessagesDelivered int64          `json:"messages_delivered"`
	HandlerPanics     int64          `json:"handler_panics"`
	Subscribers       int            `json:"subscribers"`
	Channels          map[string]int `json:"channels"`
	HistorySize       int            `json:"history_size"`
}

// Bus is a thread-safe publish/subscribe hub with bounded history.
type Bus struct {
	mu          sync.RWMutex
	subs        map[SubscriptionID]*subscription
	byChannel   map[string]map[SubscriptionID]*subscription
	history     []Message
	historySize int
	perChannel  map[string]int

	nextSub   atomic.Uint64
	nextMsg   atomic.Uint64
	published atomic.Int64
	delivered atomic.Int64
	panics    atomic.Int64
	closed    atomic.Bool

	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize bounds the retained history. Zero disables history.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n >= 0 {
			b.historySize = n
		}
	}
}

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:        make(map[SubscriptionID]*subscription),
		byChannel:   make(map[string]map[SubscriptionID]*subscription),
		perChannel:  make(map[string]int),
		historySize: DefaultHistorySize,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for channel. ChannelAll receives every message.
func (b *Bus) Subscribe(channel string, handler Handler) (SubscriptionID, error) {
	if b.closed.Load() {
		return 0, fmt.Errorf("subscribe %q: bus closed", channel)
	}
	if handler == nil {
		return 0, fmt.Errorf("subscribe %q: nil handler", channel)
	}

	sub := &subscription{
		id:      SubscriptionID(b.nextSub.Add(1)),
		channel: channel,
		handler: handler,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.id] = sub
	if b.byChannel[channel] == nil {
		b.byChannel[channel] = make(map[SubscriptionID]*subscription)
	}
	b.byChannel[channel][sub.id] = sub
	return sub.id, nil
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	if set := b.byChannel[sub.channel]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(b.byChannel, sub.channel)
		}
	}
}

// Publish records a message and delivers it to the channel and wildcard subscribers.
func (b *Bus) Publish(channel, sender string, payload any, typ MessageType, correlationID string) (Message, error) {
	if b.closed.Load() {
		return Message{}, fmt.Errorf("publish %q: bus closed", channel)
	}

	msg := Message{
		ID:            fmt.Sprintf("msg_%d", b.nextMsg.Add(1)),
		Channel:       channel,
		Sender:        sender,
		Type:          typ,
		Payload:       payload,
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}

	b.mu.Lock()
	b.perChannel[channel]++
	if b.historySize > 0 {
		b.history = append(b.history, msg)
		if over := len(b.history) - b.historySize; over > 0 {
			b.history = append(b.history[:0:0], b.history[over:]...)
		}
	}
	targets := make([]*subscription, 0, len(b.byChannel[channel])+len(b.byChannel[ChannelAll]))
	for _, s := range b.byChannel[channel] {
		targets = append(targets, s)
	}
	if channel != ChannelAll {
		for _, s := range b.byChannel[ChannelAll] {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	b.published.Add(1)
	for _, s := range targets {
		b.deliver(s, msg)
	}
	return msg, nil
}

func (b *Bus) deliver(s *subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("bus handler panicked", "channel", msg.Channel, "subscription", s.id, "panic", r)
		}
	}()
	s.handler(msg)
	b.delivered.Add(1)
}

// History returns up to limit most recent messages of channel, oldest first.
// ChannelAll selects every channel; limit <= 0 returns everything retained.
func (b *Bus) History(channel string, limit int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Message
	for i := len(b.history) - 1; i >= 0; i-- {
		m := b.history[i]
		if channel != ChannelAll && m.Channel != channel {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ByCorrelation returns the retained messages of one request, oldest first.
func (b *Bus) ByCorrelation(correlationID string) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Message
	for _, m := range b.history {
		if m.CorrelationID == correlationID {
			out = append(out, m)
		}
	}
	return out
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channels := make(map[string]int, len(b.perChannel))
	for k, v := range b.perChannel {
		channels[k] = v
	}
	return Stats{
		MessagesPublished: b.published.Load(),
		MessagesDelivered: b.delivered.Load(),
		HandlerPanics:     b.panics.Load(),
		Subscribers:       len(b.subs),
		Channels:          channels,
		HistorySize:       len(b.history),
	}
}

// ClearHistory drops retained messages but keeps subscriptions and counters.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}

// Close rejects further publishes and drops all subscriptions.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	b.subs = make(map[SubscriptionID]*subscription)
	b.byChannel = make(map[string]map[SubscriptionID]*subscription)
	b.mu.Unlock()
}
