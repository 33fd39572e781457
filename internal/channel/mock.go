// ABOUTME: Mock channel implementation with a bounded in-memory outbox
// ABOUTME: Used in development and tests where no real transport is wired

package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// mockOutboxHighWater triggers trimming of the mock outbox.
	mockOutboxHighWater = 100
	// mockOutboxLowWater is the outbox size after a trim.
	mockOutboxLowWater = 50
)

// QueuedMessage is one message held in the mock channel's outbox.
type QueuedMessage struct {
	ID          string
	RecipientID string
	Text        string
	Extra       map[string]any
	SentAt      time.Time
}

// MockChannel records sent messages in a bounded in-memory outbox instead of
// delivering them anywhere.
type MockChannel struct {
	id     string
	logger *slog.Logger

	mu         sync.Mutex
	running    bool
	outbox     []*QueuedMessage
	recipients map[string]bool
}

// NewMockChannel creates a mock channel with the given id.
// Pass nil logger for the default.
func NewMockChannel(id string, logger *slog.Logger) *MockChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockChannel{
		id:         id,
		logger:     logger.With("component", "channel", "channel_id", id),
		recipients: make(map[string]bool),
	}
}

func (c *MockChannel) ID() string { return c.id }

// Start marks the channel as running.
func (c *MockChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.logger.Info("mock channel started")
	return nil
}

// Stop marks the channel as stopped.
func (c *MockChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.logger.Info("mock channel stopped")
	return nil
}

// Send records the message in the outbox and reports success. The outbox is
// trimmed to its low-water mark once it passes the high-water mark.
func (c *MockChannel) Send(ctx context.Context, recipientID, text string, extra map[string]any) (*SendResult, error) {
	msg := &QueuedMessage{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Text:        text,
		Extra:       extra,
		SentAt:      time.Now().UTC(),
	}

	c.mu.Lock()
	c.recipients[recipientID] = true
	c.outbox = append(c.outbox, msg)
	if len(c.outbox) > mockOutboxHighWater {
		c.outbox = append([]*QueuedMessage(nil), c.outbox[len(c.outbox)-mockOutboxLowWater:]...)
	}
	c.mu.Unlock()

	c.logger.Debug("mock sent message", "recipient_id", recipientID, "message_id", msg.ID)

	return &SendResult{
		Success:   true,
		MessageID: msg.ID,
		SentAt:    msg.SentAt,
		Channel:   c.id,
	}, nil
}

// Messages returns the newest messages from the outbox, at most limit.
func (c *MockChannel) Messages(limit int) []*QueuedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 || limit > len(c.outbox) {
		limit = len(c.outbox)
	}
	out := make([]*QueuedMessage, limit)
	copy(out, c.outbox[len(c.outbox)-limit:])
	return out
}

// HealthCheck reports outbox and recipient counts.
func (c *MockChannel) HealthCheck(ctx context.Context) *Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Health{
		Status:         "healthy",
		ChannelID:      c.id,
		Running:        c.running,
		QueuedMessages: len(c.outbox),
		Recipients:     len(c.recipients),
		Timestamp:      time.Now().UTC(),
	}
}

var _ Channel = (*MockChannel)(nil)
