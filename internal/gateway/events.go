// ABOUTME: In-process event bus with named topics and ordered sequential delivery
// ABOUTME: Observer failures are isolated per handler and never affect routing

package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic names an event stream. The four built-in topics below always exist;
// registering on an unknown topic creates it.
type Topic string

// Built-in event topics.
const (
	TopicMessageReceived  Topic = "message_received"
	TopicMessageProcessed Topic = "message_processed"
	TopicAgentResponse    Topic = "agent_response"
	TopicErrorOccurred    Topic = "error_occurred"
)

// Event carries the context of one gateway lifecycle notification.
type Event struct {
	Topic       Topic
	Source      string
	Destination string
	Payload     *Payload
	Result      *Result
	Err         error
	Context     string // failure context for error_occurred events
	Timestamp   time.Time
}

// EventHandler observes events on a topic. A returned error is logged and
// swallowed; it never affects routing or delivery to later handlers.
type EventHandler func(Event) error

// subscription pairs a handler with its removal id. Go function values are
// not comparable, so removal goes by id.
type subscription struct {
	id string
	fn EventHandler
}

// EventBus fans events out to registered handlers, sequentially, in
// registration order. Emission is synchronous: Emit returns after every
// handler for the topic has run. Handlers for a single Emit run in order;
// concurrent Emits on the same topic carry no cross-call ordering guarantee.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	logger   *slog.Logger
}

// NewEventBus creates a bus with the built-in topics registered and empty.
// Pass nil logger for the default.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers: map[Topic][]subscription{
			TopicMessageReceived:  nil,
			TopicMessageProcessed: nil,
			TopicAgentResponse:    nil,
			TopicErrorOccurred:    nil,
		},
		logger: logger.With("component", "events"),
	}
}

// Register appends a handler to a topic and returns a subscription id for
// later removal. Unknown topics are created on first registration.
func (b *EventBus) Register(topic Topic, fn EventHandler) string {
	id := uuid.New().String()

	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	b.logger.Debug("event handler registered", "topic", string(topic), "sub_id", id)
	return id
}

// Remove deletes the subscription with the given id from a topic.
// Removing an unknown id or topic is a no-op.
func (b *EventBus) Remove(topic Topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to every handler registered on its topic, in
// registration order. A handler error or panic is logged and delivery
// continues with the next handler.
func (b *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.Topic]))
	copy(subs, b.handlers[event.Topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(event, sub)
	}
}

// deliver runs one handler, containing its error or panic.
func (b *EventBus) deliver(event Event, sub subscription) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"topic", string(event.Topic), "sub_id", sub.id, "panic", r)
		}
	}()

	if err := sub.fn(event); err != nil {
		b.logger.Error("event handler failed",
			"topic", string(event.Topic), "sub_id", sub.id, "error", err)
	}
}

// HandlerCount returns the number of handlers registered on a topic.
func (b *EventBus) HandlerCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
