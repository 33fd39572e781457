// ABOUTME: Agent contract and message types consumed by the gateway router
// ABOUTME: Defines Request/Response and the Agent interface for pluggable responders

package agent

import (
	"context"
	"time"
)

// Request is an inbound message handed to an agent for processing.
type Request struct {
	Content   string
	Channel   string // channel the message arrived on
	UserID    string
	SessionID string
	Extra     map[string]any
}

// Response is an agent's reply to a processed request. The original request
// is carried along so downstream consumers can correlate.
type Response struct {
	AgentID   string
	Text      string
	Timestamp time.Time
	Request   *Request
}

// Agent is a pluggable responder resolved by id. Response generation is
// outside the gateway's concern; implementations may call out to anything.
type Agent interface {
	ID() string
	ProcessMessage(ctx context.Context, req *Request) (*Response, error)
}
