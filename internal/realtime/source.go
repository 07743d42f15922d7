// Package realtime consumes server-initiated change notifications and merges
// them into the query cache as targeted invalidations. Two transports are
// supported: the backend's websocket endpoint (/ws) and, for deployments
// where the client runs next to the broker, a Redis pub/sub channel.
//
// The merge policy is the one ordering rule the whole client depends on: a
// push for a resource with a mutation in flight is deferred until the
// mutation resolves, so the mutation's outcome is never clobbered mid-flight.
package realtime

import "fmt"

// Action describes what happened to the pushed resource.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event is one push notification: a resource kind plus identifier. The
// payload deliberately carries no resource body - pushes only invalidate,
// and the next read fetches server truth.
type Event struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Action Action `json:"action"`
}

// Validate checks the event names a resource.
func (e *Event) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("event kind cannot be empty")
	}
	if e.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	return nil
}

// ConnState is the realtime transport's health, used to gate whether passive
// invalidations can be trusted as fresh. Reconnecting collapses into
// StateConnecting for display.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source is an active subscription to push notifications. All channels are
// closed when the source shuts down. Errors are non-fatal: a malformed
// message is reported and skipped, and the subscription continues.
type Source interface {
	// Events returns the channel of push notifications.
	Events() <-chan Event

	// Errors returns the channel of non-fatal subscription errors.
	Errors() <-chan error

	// States returns the channel of connection-state transitions.
	States() <-chan ConnState

	// Close stops the subscription and cleans up resources. Implements
	// io.Closer. Safe to call multiple times.
	Close() error
}
