// ABOUTME: Channel contract and manager for outbound message delivery surfaces
// ABOUTME: Channels are resolved by id; delivery is at-least-once with explicit failure reporting

package channel

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SendResult reports the outcome of one delivery attempt.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id"`
	SentAt    time.Time `json:"sent_at"`
	Channel   string    `json:"channel"`
}

// Health is a channel's health report.
type Health struct {
	Status         string    `json:"status"`
	ChannelID      string    `json:"channel_id"`
	Running        bool      `json:"running"`
	QueuedMessages int       `json:"queued_messages"`
	Recipients     int       `json:"recipients"`
	Timestamp      time.Time `json:"timestamp"`
}

// Channel is an external communication surface. Concrete integrations live
// outside the gateway core; the mock channel in this package is the only
// in-repo transport.
type Channel interface {
	ID() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, recipientID, text string, extra map[string]any) (*SendResult, error)
	HealthCheck(ctx context.Context) *Health
}

// Manager coordinates registered channels and resolves them by id.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *slog.Logger
}

// NewManager creates a new Manager instance. Pass nil logger for the default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		channels: make(map[string]Channel),
		logger:   logger.With("component", "channel-manager"),
	}
}

// Register adds a channel. A duplicate id replaces the previous registration.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.ID()] = ch
	m.logger.Info("channel registered", "channel_id", ch.ID(), "total_channels", len(m.channels))
}

// Get resolves a channel by id.
func (m *Manager) Get(id string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[id]
	return ch, ok
}

// List returns the ids of all registered channels, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartAll starts every registered channel, stopping at the first failure.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, ch := range m.snapshot() {
		if err := ch.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every registered channel. Failures are logged, not returned:
// shutdown proceeds through the full set.
func (m *Manager) StopAll(ctx context.Context) {
	for _, ch := range m.snapshot() {
		if err := ch.Stop(ctx); err != nil {
			m.logger.Error("stopping channel", "channel_id", ch.ID(), "error", err)
		}
	}
}

// HealthCheck gathers per-channel health reports keyed by channel id.
func (m *Manager) HealthCheck(ctx context.Context) map[string]*Health {
	reports := make(map[string]*Health)
	for _, ch := range m.snapshot() {
		reports[ch.ID()] = ch.HealthCheck(ctx)
	}
	return reports
}

func (m *Manager) snapshot() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out
}
