// ABOUTME: Typed errors for the gateway routing pipeline
// ABOUTME: Covers lifecycle, handler failure, timeout, and payload validation

package gateway

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotRunning is returned when RouteMessage is invoked outside the Running
// lifecycle state.
var ErrNotRunning = errors.New("gateway is not running")

// RoutingError wraps a handler execution failure. The original cause is
// available via Unwrap.
type RoutingError struct {
	Route RouteKind
	Err   error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing %s: %v", e.Route, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// RoutingTimeoutError reports that a handler exceeded its execution bound.
type RoutingTimeoutError struct {
	Route   RouteKind
	Timeout time.Duration
}

func (e *RoutingTimeoutError) Error() string {
	return fmt.Sprintf("routing %s: handler exceeded %s timeout", e.Route, e.Timeout)
}

// ValidationError reports a malformed route payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload field %s: %s", e.Field, e.Reason)
}
