// Package sse implements Server-Sent Events for pushing reader state
// transitions and library changes to the UI.
package sse

import (
	"time"

	"github.com/dipoleapp/dipole-server/internal/reader"
)

// EventType represents the type of SSE event.
//
// Reader transition events reuse the mutation kind verbatim
// (highlight.added, card.sync_error, collection.sync_waiting, ...), so the
// UI switches on one vocabulary for both dispatch results and pushed
// updates.
type EventType string

const (
	// EventBookCreated represents a book being added to the library.
	EventBookCreated EventType = "library.book_created"
	// EventBookUpdated represents a library book record update.
	EventBookUpdated EventType = "library.book_updated"
	// EventBookDeleted represents a book removal.
	EventBookDeleted EventType = "library.book_deleted"

	// EventSidecarImported represents a data file imported from disk.
	EventSidecarImported EventType = "library.sidecar_imported"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// TransitionEventData is the payload for reader transition events: the full
// post-mutation state. Sending the whole snapshot keeps clients trivially
// convergent; annotation state for one book is small.
type TransitionEventData struct {
	State reader.State `json:"state"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data:      HeartbeatEventData{ServerTime: now},
	}
}

// NewTransitionEvent wraps a reader transition for broadcast.
func NewTransitionEvent(tr reader.Transition) Event {
	return Event{
		Type:      EventType(tr.Kind),
		Timestamp: time.Now(),
		Data:      TransitionEventData{State: tr.State},
	}
}

// NewLibraryEvent creates a library change event with the given payload.
func NewLibraryEvent(eventType EventType, data any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
