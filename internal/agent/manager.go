// ABOUTME: Manages registered agents and resolves them by id for the gateway
// ABOUTME: Tracks the default agent used by the placeholder selection policy

package agent

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrAgentAlreadyRegistered indicates an agent with the same ID is already registered.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// Health is the agent subsystem health report.
type Health struct {
	Status       string    `json:"status"`
	AgentCount   int       `json:"agent_count"`
	DefaultAgent string    `json:"default_agent,omitempty"`
	Agents       []string  `json:"agents"`
	Timestamp    time.Time `json:"timestamp"`
}

// Manager coordinates registered agents and resolves them by id.
type Manager struct {
	mu        sync.RWMutex
	agents    map[string]Agent
	defaultID string
	logger    *slog.Logger
}

// NewManager creates a new Manager instance. Pass nil logger for the default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		agents: make(map[string]Agent),
		logger: logger.With("component", "agent-manager"),
	}
}

// Register adds an agent to the manager. The first registered agent becomes
// the default. Returns ErrAgentAlreadyRegistered on id collision.
func (m *Manager) Register(a Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[a.ID()]; exists {
		return ErrAgentAlreadyRegistered
	}

	m.agents[a.ID()] = a
	if m.defaultID == "" {
		m.defaultID = a.ID()
	}

	m.logger.Info("agent registered", "agent_id", a.ID(), "total_agents", len(m.agents))
	return nil
}

// SetDefault marks an agent as the default selection target.
// Returns false if no agent with that id is registered.
func (m *Manager) SetDefault(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.agents[id]; !exists {
		return false
	}
	m.defaultID = id
	return true
}

// Get resolves an agent by id.
func (m *Manager) Get(id string) (Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// DefaultID returns the id of the default agent, or "" if none is registered.
func (m *Manager) DefaultID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID
}

// List returns the ids of all registered agents, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HealthCheck reports the registered agent set.
func (m *Manager) HealthCheck() *Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Health{
		Status:       "healthy",
		AgentCount:   len(m.agents),
		DefaultAgent: m.defaultID,
		Agents:       ids,
		Timestamp:    time.Now().UTC(),
	}
}
