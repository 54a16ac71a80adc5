// Package events provides the in-process event bus that pipeline stages
// and the notification engine publish to, and that live API consumers
// subscribe to.
package events

import (
	"context"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	TypeStage        EventType = "stage"        // pipeline stage completed or failed
	TypeNotification EventType = "notification" // alert fired by the watcher
	TypeSync         EventType = "sync"         // issue tracker sync outcome
)

// Event is one unit on the bus.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Topic     string            `json:"topic"`   // routing key, e.g. run ID or "watcher"
	Subject   string            `json:"subject"` // entity the event is about
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler processes events for one subscriber.
type Handler func(ctx context.Context, ev *Event) error

// Bus is the fan-out backbone. Subscribers on a topic receive every
// event published to it; the empty topic subscribes to everything.
type Bus interface {
	// Publish delivers ev to matching subscribers.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for events on topic ("" for all).
	// Returns an unsubscribe function.
	Subscribe(topic string, handler Handler) (unsubscribe func())

	// History returns the most recent limit events on topic.
	History(topic string, limit int) ([]*Event, error)
}
