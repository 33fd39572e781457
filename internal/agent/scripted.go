// ABOUTME: Scripted agent producing canned replies for greetings, help, and time queries
// ABOUTME: Falls back to echoing the input, useful for development and tests

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ScriptedAgent is a placeholder responder with a small set of canned rules
// and an echoing fallback. It stands in where a real model-backed agent
// would be plugged.
type ScriptedAgent struct {
	id   string
	name string
}

// NewScriptedAgent creates a scripted agent with the given id and display name.
func NewScriptedAgent(id, name string) *ScriptedAgent {
	if name == "" {
		name = id
	}
	return &ScriptedAgent{id: id, name: name}
}

func (a *ScriptedAgent) ID() string { return a.id }

// ProcessMessage produces a reply for the request. It never fails.
func (a *ScriptedAgent) ProcessMessage(ctx context.Context, req *Request) (*Response, error) {
	return &Response{
		AgentID:   a.id,
		Text:      a.reply(req.Content),
		Timestamp: time.Now().UTC(),
		Request:   req,
	}, nil
}

func (a *ScriptedAgent) reply(input string) string {
	lowered := strings.ToLower(input)

	switch {
	case strings.Contains(lowered, "hello") || strings.Contains(lowered, "hi ") || lowered == "hi" || strings.Contains(lowered, "hey"):
		return fmt.Sprintf("Hello there! I'm %s. How can I assist you today?", a.name)
	case strings.Contains(lowered, "help"):
		return "I'm an assistant agent. Send me a message and I'll do my best to respond."
	case strings.Contains(lowered, "time") || strings.Contains(lowered, "date"):
		return fmt.Sprintf("The current time is %s UTC.", time.Now().UTC().Format("2006-01-02 15:04:05"))
	case strings.Contains(lowered, "name"):
		return fmt.Sprintf("I'm %s, running with id %s.", a.name, a.id)
	default:
		return fmt.Sprintf("I received your message: %q. What would you like me to help you with?", input)
	}
}

var _ Agent = (*ScriptedAgent)(nil)
