// ABOUTME: Route-kind resolution and the built-in routing handlers
// ABOUTME: Closed enums for route kinds and internal message kinds; unknown cases are no-ops

package gateway

import (
	"context"

	"github.com/2389/relay-gateway/internal/agent"
	"github.com/2389/relay-gateway/internal/channel"
	"github.com/2389/relay-gateway/internal/store"
)

// RouteKind is the closed set of supported routes. Unknown source/destination
// pairs resolve to RouteUnknown, which routes as a logged no-op rather than
// an error.
type RouteKind int

const (
	RouteUnknown RouteKind = iota
	RouteChannelToAgent
	RouteAgentToChannel
	RouteInternal
)

// String returns the route key form, source + "_to_" + destination.
func (k RouteKind) String() string {
	switch k {
	case RouteChannelToAgent:
		return "channel_to_agent"
	case RouteAgentToChannel:
		return "agent_to_channel"
	case RouteInternal:
		return "internal_message"
	default:
		return "unknown"
	}
}

// routeKindFor resolves a source/destination pair to a route kind.
func routeKindFor(source, destination string) RouteKind {
	switch source + "_to_" + destination {
	case "channel_to_agent":
		return RouteChannelToAgent
	case "agent_to_channel":
		return RouteAgentToChannel
	case "internal_to_message":
		return RouteInternal
	default:
		return RouteUnknown
	}
}

// InternalKind is the closed set of internal message types.
type InternalKind string

const (
	InternalSystemNotification InternalKind = "system_notification"
	InternalHealthCheck        InternalKind = "component_health_check"
)

// Payload is the message handed to RouteMessage. Which fields matter depends
// on the route: channel→agent reads Content/Channel/UserID, agent→channel
// reads ChannelID/Recipient/Content, internal reads Type/Notification.
type Payload struct {
	Content      string         `json:"content,omitempty"`
	Channel      string         `json:"channel,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	ChannelID    string         `json:"channel_id,omitempty"`
	Recipient    string         `json:"recipient,omitempty"`
	Type         string         `json:"type,omitempty"`
	Notification string         `json:"notification,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Result is a routing outcome. Exactly one field is set, matching the route
// that produced it. A nil *Result (with nil error) means the route was a
// no-op; callers must check for it.
type Result struct {
	Agent  *agent.Response     `json:"agent,omitempty"`
	Send   *channel.SendResult `json:"send,omitempty"`
	Health *HealthReport       `json:"health,omitempty"`
	Status string              `json:"status,omitempty"`
}

// routeHandler transforms an inbound payload into a routing outcome.
type routeHandler func(ctx context.Context, p *Payload) (*Result, error)

// buildRoutingTable wires the built-in handlers. Called once from Initialize;
// the table is read-only afterwards and needs no locking.
func (g *Gateway) buildRoutingTable() map[RouteKind]routeHandler {
	return map[RouteKind]routeHandler{
		RouteChannelToAgent: g.routeChannelToAgent,
		RouteAgentToChannel: g.routeAgentToChannel,
		RouteInternal:       g.routeInternal,
	}
}

// AgentSelector picks the agent that should handle a channel→agent payload.
// The default policy always selects the manager's default agent; richer
// policies (content- or user-aware) plug in via SetAgentSelector.
type AgentSelector interface {
	Select(ctx context.Context, p *Payload) (string, error)
}

// defaultSelector always returns the manager's default agent id.
type defaultSelector struct {
	agents *agent.Manager
}

func (s *defaultSelector) Select(ctx context.Context, p *Payload) (string, error) {
	return s.agents.DefaultID(), nil
}

// routeChannelToAgent resolves an agent via the selection policy, processes
// the message, and persists the exchange as an interaction when a memory
// manager is attached. A failed persistence write is logged and does not
// unwind the successful route result.
func (g *Gateway) routeChannelToAgent(ctx context.Context, p *Payload) (*Result, error) {
	agentID, err := g.agentSelector().Select(ctx, p)
	if err != nil {
		return nil, err
	}
	if agentID == "" {
		g.logger.Warn("no suitable agent found for message", "channel", p.Channel, "user_id", p.UserID)
		return nil, nil
	}

	a, ok := g.agents.Get(agentID)
	if !ok {
		g.logger.Warn("selected agent not registered", "agent_id", agentID)
		return nil, nil
	}

	resp, err := a.ProcessMessage(ctx, &agent.Request{
		Content:   p.Content,
		Channel:   p.Channel,
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Extra:     p.Extra,
	})
	if err != nil {
		return nil, err
	}

	if g.memory != nil {
		g.persistExchange(ctx, p, agentID, resp)
	}

	return &Result{Agent: resp}, nil
}

// persistExchange stores the routed exchange as an interaction. Delivery of
// the response takes precedence over persistence durability: failures are
// logged, never propagated.
func (g *Gateway) persistExchange(ctx context.Context, p *Payload, agentID string, resp *agent.Response) {
	_, err := g.memory.StoreInteraction(ctx, &store.Interaction{
		Source:     p.Channel,
		UserID:     p.UserID,
		InputText:  p.Content,
		OutputText: resp.Text,
		SessionID:  p.SessionID,
		Metadata: map[string]any{
			"type":     RouteChannelToAgent.String(),
			"agent_id": agentID,
		},
	})
	if err != nil {
		g.logger.Error("storing routed interaction", "agent_id", agentID, "user_id", p.UserID, "error", err)
	}
}

// routeAgentToChannel delivers an agent response through the named channel
// and emits agent_response with the outcome. A missing channel_id or an
// unregistered channel is a logged no-op.
func (g *Gateway) routeAgentToChannel(ctx context.Context, p *Payload) (*Result, error) {
	if p.ChannelID == "" {
		g.logger.Warn("no channel_id specified for agent to channel routing")
		return nil, nil
	}

	ch, ok := g.channels.Get(p.ChannelID)
	if !ok {
		g.logger.Warn("channel not registered", "channel_id", p.ChannelID)
		return nil, nil
	}

	sendResult, err := ch.Send(ctx, p.Recipient, p.Content, p.Extra)
	if err != nil {
		return nil, err
	}

	g.bus.Emit(Event{
		Topic:       TopicAgentResponse,
		Source:      "agent",
		Destination: "channel",
		Payload:     p,
		Result:      &Result{Send: sendResult},
	})

	return &Result{Send: sendResult}, nil
}

// routeInternal dispatches internal system messages on their kind.
// Unrecognized kinds are a logged no-op.
func (g *Gateway) routeInternal(ctx context.Context, p *Payload) (*Result, error) {
	switch InternalKind(p.Type) {
	case InternalSystemNotification:
		return g.handleSystemNotification(p), nil
	case InternalHealthCheck:
		return &Result{Health: g.HealthCheck(ctx)}, nil
	default:
		g.logger.Warn("unknown internal message type", "type", p.Type)
		return nil, nil
	}
}

// handleSystemNotification acknowledges a system notification.
func (g *Gateway) handleSystemNotification(p *Payload) *Result {
	g.logger.Info("handling system notification", "notification", p.Notification)

	switch p.Notification {
	case "startup", "shutdown":
		return &Result{Status: "processed"}
	case "health_check":
		return &Result{Health: g.HealthCheck(context.Background())}
	default:
		return &Result{Status: "processed"}
	}
}

// invokeHandler runs a route handler under the configured execution bound.
// Exceeding the bound (or an already-expired caller deadline) yields a
// RoutingTimeoutError; other context cancellation propagates as the handler's
// error.
func (g *Gateway) invokeHandler(ctx context.Context, kind RouteKind, handler routeHandler, p *Payload) (*Result, error) {
	timeout := g.routeTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := handler(ctx, p)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &RoutingTimeoutError{Route: kind, Timeout: timeout}
		}
		return nil, ctx.Err()
	}
}
