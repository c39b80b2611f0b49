package events

import (
	"fmt"
	"sync/atomic"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Backend row changes. Any insert/update/delete on the tasks or
	// task_progress tables surfaces as one of these; subscribers get a
	// generic "changed" signal, no field-level diff.
	EventTaskChanged     EventType = "task.changed"
	EventProgressChanged EventType = "progress.changed"
	EventMemberChanged   EventType = "member.changed"

	// Session lifecycle
	EventSessionLogin  EventType = "session.login"
	EventSessionLogout EventType = "session.logout"

	// Scheduled AI briefing
	EventBriefingReady EventType = "briefing.ready"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceStore     EventSource = "store"
	SourceAuth      EventSource = "auth"
	SourceScheduler EventSource = "scheduler"
	SourceGateway   EventSource = "gateway"
)

// Event represents a change notification in the system.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload,omitempty"`
}

var eventIDCounter uint64

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	seq := atomic.AddUint64(&eventIDCounter, 1)
	return Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixNano(), seq),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}
