// Package live pushes change notifications to connected clients. Stores
// publish an event after every successful write and clients subscribe to
// the topics they display.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultBuffer = 32

// Event is one change notification. Data carries a JSON snapshot of the
// changed entity.
type Event struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    time.Time       `json:"at"`
}

// NewEvent marshals data into an event for the topic.
func NewEvent(topic, typ string, data any) (Event, error) {
	ev := Event{Topic: topic, Type: typ, At: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s event: %w", typ, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Notify builds an event and publishes it, logging instead of failing. Stores
// call it after a write has already been committed.
func Notify(ctx context.Context, p Publisher, topic, typ string, data any) {
	if p == nil {
		return
	}
	ev, err := NewEvent(topic, typ, data)
	if err == nil {
		err = p.Publish(ctx, ev)
	}
	if err != nil {
		slog.Warn("live notify failed", "topic", topic, "type", typ, "error", err)
	}
}

type subscriber struct {
	ch chan Event
}

// Hub is an in-process topic fan-out. Events on one topic reach each
// subscriber in publish order. A subscriber whose buffer is full misses
// the event rather than blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	buffer int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		buffer: defaultBuffer,
	}
}

// Subscribe registers interest in a topic. The returned cancel func removes
// the subscription and closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.topics[topic], sub)
			if len(h.topics[topic]) == 0 {
				delete(h.topics, topic)
			}
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to the current subscribers of ev.Topic.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.Topic == "" {
		return fmt.Errorf("event topic is required")
	}

	// The write lock serialises publishers so per-topic order holds.
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.topics[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("live subscriber lagging, event dropped", "topic", ev.Topic, "type", ev.Type)
		}
	}
	return nil
}

// Subscribers returns the number of subscriptions on a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
