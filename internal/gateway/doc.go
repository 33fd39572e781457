// Package gateway orchestrates the relay-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the relay-gateway server.
// It owns the routing table, the event bus, and the HTTP API, and wires them
// to the agent manager, channel manager, and memory manager.
//
// # Lifecycle
//
// A Gateway moves through four states:
//
//	Uninitialized -> Initialized -> Running -> Stopped
//
// Initialize builds the routing table, Start begins accepting messages and
// starts the registered channels, Stop halts everything. RouteMessage outside
// the Running state fails with ErrNotRunning.
//
// # Routing
//
// Messages carry a source and a destination; the pair selects one of three
// built-in routes:
//
//   - channel_to_agent: inbound user message, processed by an agent selected
//     via the AgentSelector policy, with the exchange persisted as an
//     interaction
//   - agent_to_channel: outbound agent response, delivered through the named
//     channel
//   - internal_message: system notifications and component health checks
//
// An unrecognized pair is a logged no-op: RouteMessage returns (nil, nil).
// Each handler runs under an execution bound; exceeding it yields a
// *RoutingTimeoutError and other failures a *RoutingError.
//
// # Events
//
// The EventBus fans lifecycle events out to registered observers on four
// topics: message_received, message_processed, agent_response, and
// error_occurred. Delivery is synchronous and ordered; observer errors and
// panics are contained and never affect routing outcomes.
//
// # HTTP API
//
// The Server exposes the gateway over HTTP in api.go:
//
//   - POST /api/send - Route one message through the gateway
//   - GET /api/interactions - Recent interactions, optionally per user
//   - GET /api/memory/search - Search memory entries
//   - POST /api/memory - Store a memory entry
//   - GET /api/status - Aggregated health report
//   - GET/POST /api/notes - Daily notes
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check
//
// API routes require a bearer token when a JWT secret is configured; the
// health endpoints are always open.
package gateway
