package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const redisChannel = "planim:live"

// RedisBroker relays published events through a Redis channel so that every
// server instance delivers them to its local hub.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
}

// NewRedisBroker creates a broker that fans events out to hub.
func NewRedisBroker(client *redis.Client, hub *Hub) *RedisBroker {
	return &RedisBroker{client: client, hub: hub}
}

// Publish sends ev to Redis. Local subscribers receive it once Run relays it back.
func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	if ev.Topic == "" {
		return fmt.Errorf("event topic is required")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run relays Redis messages into the hub until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so no publish is missed after Run starts.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	slog.Info("live relay subscribed", "channel", redisChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("live relay dropped malformed event", "error", err)
				continue
			}
			if err := b.hub.Publish(ctx, ev); err != nil {
				slog.Warn("live relay publish failed", "topic", ev.Topic, "error", err)
			}
		}
	}
}
