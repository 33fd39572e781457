// ABOUTME: Core gateway with lifecycle management and the message routing pipeline
// ABOUTME: Routes flow through a fixed table with event emission before and after each dispatch

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/relay-gateway/internal/agent"
	"github.com/2389/relay-gateway/internal/channel"
	"github.com/2389/relay-gateway/internal/memory"
)

// State is the gateway lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultRouteTimeout bounds a single route handler's execution when no
// explicit timeout is configured.
const DefaultRouteTimeout = 30 * time.Second

// Options configures a Gateway.
type Options struct {
	// RouteTimeout bounds a single handler invocation. Zero means
	// DefaultRouteTimeout; negative disables the bound.
	RouteTimeout time.Duration
}

// HealthReport aggregates component health into one gateway-level report.
// Overall status is "healthy" only when every component reports healthy.
type HealthReport struct {
	Status    string                     `json:"status"`
	State     string                     `json:"state"`
	Timestamp time.Time                  `json:"timestamp"`
	Memory    *memory.Health             `json:"memory,omitempty"`
	Agents    *agent.Health              `json:"agents,omitempty"`
	Channels  map[string]*channel.Health `json:"channels,omitempty"`
}

// Gateway routes messages between channels, agents, and internal components.
// The zero value is not usable; construct with New and call Initialize and
// Start before routing.
type Gateway struct {
	memory   *memory.Manager
	agents   *agent.Manager
	channels *channel.Manager
	bus      *EventBus
	logger   *slog.Logger

	selector     AgentSelector
	routeTimeout time.Duration

	mu     sync.RWMutex
	state  State
	routes map[RouteKind]routeHandler
}

// New creates an uninitialized gateway over the given component managers.
// The memory manager may be nil, in which case routed exchanges are not
// persisted. Pass nil logger for the default.
func New(mem *memory.Manager, agents *agent.Manager, channels *channel.Manager, opts Options, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := opts.RouteTimeout
	if timeout == 0 {
		timeout = DefaultRouteTimeout
	}
	if timeout < 0 {
		timeout = 0
	}

	g := &Gateway{
		memory:       mem,
		agents:       agents,
		channels:     channels,
		logger:       logger.With("component", "gateway"),
		routeTimeout: timeout,
		state:        StateUninitialized,
	}
	g.bus = NewEventBus(logger)
	g.selector = &defaultSelector{agents: agents}
	return g
}

// SetAgentSelector replaces the agent selection policy. Safe to call while
// routing; an in-flight route uses whichever selector it resolved at dispatch.
func (g *Gateway) SetAgentSelector(s AgentSelector) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selector = s
}

// agentSelector returns the current selection policy.
func (g *Gateway) agentSelector() AgentSelector {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selector
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Events exposes the gateway's event bus for handler registration.
func (g *Gateway) Events() *EventBus { return g.bus }

// Initialize builds the routing table and moves the gateway to Initialized.
// Valid only from Uninitialized.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateUninitialized {
		return fmt.Errorf("cannot initialize gateway in state %s", g.state)
	}

	g.routes = g.buildRoutingTable()
	g.state = StateInitialized
	g.logger.Info("gateway initialized", "routes", len(g.routes), "route_timeout", g.routeTimeout)
	return nil
}

// Start moves the gateway to Running and starts all registered channels.
// Valid only from Initialized.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateInitialized {
		g.mu.Unlock()
		return fmt.Errorf("cannot start gateway in state %s", g.state)
	}
	g.state = StateRunning
	g.mu.Unlock()

	if err := g.channels.StartAll(ctx); err != nil {
		g.mu.Lock()
		g.state = StateStopped
		g.mu.Unlock()
		return fmt.Errorf("starting channels: %w", err)
	}

	g.logger.Info("gateway started")
	return nil
}

// Stop moves the gateway to Stopped and stops all channels. Routing calls
// after Stop fail with ErrNotRunning. Stop is idempotent, but only valid once
// the gateway has been initialized: Stopped is reachable from Initialized and
// Running, not from Uninitialized.
func (g *Gateway) Stop(ctx context.Context) error {
	g.mu.Lock()
	if g.state == StateStopped {
		g.mu.Unlock()
		return nil
	}
	if g.state == StateUninitialized {
		g.mu.Unlock()
		return fmt.Errorf("cannot stop gateway in state %s", StateUninitialized)
	}
	g.state = StateStopped
	g.mu.Unlock()

	g.channels.StopAll(ctx)
	g.logger.Info("gateway stopped")
	return nil
}

// RouteMessage routes one message from source to destination. Once a handler
// is resolved it emits message_received before dispatch and message_processed
// after a successful one; failures emit error_occurred and return a wrapped
// routing error. Unknown source/destination pairs return (nil, nil) before
// any event is emitted; handler-level skips also return (nil, nil).
func (g *Gateway) RouteMessage(ctx context.Context, source, destination string, p *Payload) (*Result, error) {
	g.mu.RLock()
	state := g.state
	g.mu.RUnlock()
	if state != StateRunning {
		return nil, ErrNotRunning
	}

	if p == nil {
		return nil, &ValidationError{Field: "payload", Reason: "must not be nil"}
	}

	kind := routeKindFor(source, destination)

	handler, ok := g.routes[kind]
	if !ok {
		g.logger.Warn("no route for message", "source", source, "destination", destination)
		return nil, nil
	}

	g.bus.Emit(Event{
		Topic:       TopicMessageReceived,
		Source:      source,
		Destination: destination,
		Payload:     p,
	})

	result, err := g.invokeHandler(ctx, kind, handler, p)
	if err != nil {
		g.bus.Emit(Event{
			Topic:       TopicErrorOccurred,
			Source:      source,
			Destination: destination,
			Payload:     p,
			Err:         err,
			Context:     fmt.Sprintf("routing %s message", kind),
		})

		var timeoutErr *RoutingTimeoutError
		if errors.As(err, &timeoutErr) {
			return nil, timeoutErr
		}
		return nil, &RoutingError{Route: kind, Err: err}
	}

	g.bus.Emit(Event{
		Topic:       TopicMessageProcessed,
		Source:      source,
		Destination: destination,
		Payload:     p,
		Result:      result,
	})

	return result, nil
}

// RegisterEventHandler subscribes fn to a topic and returns the subscription
// id used for removal.
func (g *Gateway) RegisterEventHandler(topic Topic, fn EventHandler) string {
	return g.bus.Register(topic, fn)
}

// RemoveEventHandler removes a subscription. Unknown ids are a no-op.
func (g *Gateway) RemoveEventHandler(topic Topic, id string) {
	g.bus.Remove(topic, id)
}

// HealthCheck aggregates component health. It never fails: a degraded
// component degrades the overall status instead.
func (g *Gateway) HealthCheck(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:    "healthy",
		State:     g.State().String(),
		Timestamp: time.Now().UTC(),
		Channels:  g.channels.HealthCheck(ctx),
	}

	if g.memory != nil {
		report.Memory = g.memory.HealthCheck(ctx)
		if report.Memory.Status != "healthy" {
			report.Status = "degraded"
		}
	}

	report.Agents = g.agents.HealthCheck()
	if report.Agents.Status != "healthy" {
		report.Status = "degraded"
	}

	for _, ch := range report.Channels {
		if ch.Status != "healthy" {
			report.Status = "degraded"
		}
	}

	if g.State() != StateRunning {
		report.Status = "degraded"
	}

	return report
}
