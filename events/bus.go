package events

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryBus is a thread-safe in-process event bus.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // topic -> handlers; "" matches all
	history  []*Event
	maxHist  int
}

type handlerEntry struct {
	id      int
	handler Handler
}

var entryCounter int

// NewInMemoryBus creates an InMemoryBus with a 1000-event history cap.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]handlerEntry),
		maxHist:  1000,
	}
}

// Publish delivers ev to subscribers of its topic and to wildcard
// subscribers. Handlers run outside the bus lock.
func (b *InMemoryBus) Publish(ctx context.Context, ev *Event) error {
	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	var targets []Handler
	for _, e := range b.handlers[ev.Topic] {
		targets = append(targets, e.handler)
	}
	if ev.Topic != "" {
		for _, e := range b.handlers[""] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish: %d handler error(s): %v", len(errs), errs[0])
	}
	return nil
}

// Subscribe registers a handler for events on topic.
// The returned function unsubscribes the handler.
func (b *InMemoryBus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entryCounter++
	id := entryCounter
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, topic)
		} else {
			b.handlers[topic] = filtered
		}
	}
}

// History returns the most recent limit events on topic, oldest first.
// The empty topic returns everything.
func (b *InMemoryBus) History(topic string, limit int) ([]*Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Event
	for i := len(b.history) - 1; i >= 0; i-- {
		ev := b.history[i]
		if topic == "" || ev.Topic == topic {
			result = append(result, ev)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result, nil
}
