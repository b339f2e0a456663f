// Package events provides the in-process event bus for run lifecycle
// notifications.
package events

import "time"

// EventType identifies the kind of event
type EventType string

const (
	// RunQueued - a run was validated, assembled and stored as pending
	RunQueued EventType = "run_queued"
	// RunSubmitted - a run was handed to an execution backend
	RunSubmitted EventType = "run_submitted"
	// RunCompleted - counts came back and were interpreted
	RunCompleted EventType = "run_completed"
	// RunFailed - assembly, submission or execution failed
	RunFailed EventType = "run_failed"
	// BackendHealthChanged - an execution backend became (un)reachable
	BackendHealthChanged EventType = "backend_health_changed"
)

// EventData is the interface that all event payload types implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is one published event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}
