package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter EventType = "state_enter"
	EventStateLeave EventType = "state_leave"
	EventCommand    EventType = "command"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StateEvent represents entry into or exit from a world state.
type StateEvent struct {
	EventBase
	Path string `json:"path"`
}

// CommandEvent reports the outcome of one message.
type CommandEvent struct {
	EventBase
	Text    string `json:"text"`
	Command string `json:"command,omitempty"`
	Source  string `json:"source"`
	Dest    string `json:"dest"`
	// Accepted is false when the text did not parse or the command was unavailable.
	Accepted bool `json:"accepted"`
}

// LifecycleHooks defines callbacks for bot observability.
type LifecycleHooks struct {
	OnStateEnter func(context.Context, *StateEvent)
	OnStateLeave func(context.Context, *StateEvent)
	OnCommand    func(context.Context, *CommandEvent)
}
