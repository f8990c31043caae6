package redis

import (
	"context"
	"fmt"

	"github.com/bitcollege/registrar/internal/infrastructure/messaging"
)

// EventChannel adapts Cache to messaging.RedisClient.
type EventChannel struct {
	cache *Cache
}

// NewEventChannel creates a new EventChannel.
func NewEventChannel(cache *Cache) *EventChannel {
	return &EventChannel{cache: cache}
}

// Publish publishes a JSON message to a channel.
func (e *EventChannel) Publish(ctx context.Context, channel string, message any) error {
	return e.cache.Publish(ctx, channel, message)
}

// Subscribe forwards messages from the channels until ctx is done.
func (e *EventChannel) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := e.cache.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ messaging.RedisClient = (*EventChannel)(nil)
