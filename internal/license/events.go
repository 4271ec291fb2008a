package license

import "time"

// EventType identifies a lifecycle transition.
type EventType string

const (
	EventClaimed   EventType = "claimed"
	EventRefreshed EventType = "refreshed"
	EventReclaimed EventType = "reclaimed"
	EventReleased  EventType = "released"
	EventDenied    EventType = "denied"
	EventCreated   EventType = "created"
	EventExtended  EventType = "extended"
	EventExpired   EventType = "expired"
	EventUnbound   EventType = "unbound"
	EventRenamed   EventType = "renamed"
	EventDeleted   EventType = "deleted"
)

// Event is published after a store commit. Events are informational and
// never part of the commit itself.
type Event struct {
	Type     EventType `json:"type"`
	Key      string    `json:"key"`
	ClientID string    `json:"client_id,omitempty"`
	Reason   Reason    `json:"reason,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	At       time.Time `json:"at"`
}

// EventSink receives lifecycle events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Publish calls f(e).
func (f EventSinkFunc) Publish(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Publish(Event) {}
